package protocol

import (
	"github.com/pimalaya/timerd/pkg/timer"
	"github.com/pimalaya/timerd/pkg/version"
)

// RequestKind names one of the six operations exposed over the wire.
type RequestKind string

const (
	KindStart       RequestKind = "start"
	KindGet         RequestKind = "get"
	KindPause       RequestKind = "pause"
	KindResume      RequestKind = "resume"
	KindStop        RequestKind = "stop"
	KindSetDuration RequestKind = "set_duration"
)

// Request is the decoded shape of one frame sent client -> server. Seconds
// is set only for KindSetDuration. ProtocolVersion is stamped by
// [pkg/client] on every outgoing request; a zero value is treated as
// compatible so frames from a client predating this field still decode.
type Request struct {
	Kind            RequestKind `json:"kind"`
	Seconds         *uint32     `json:"seconds,omitempty"`
	ProtocolVersion string      `json:"protocol_version,omitempty"`
}

// CheckVersion reports whether req's ProtocolVersion is compatible with the
// version this server implements. An empty ProtocolVersion or a malformed
// one is treated as compatible rather than rejected outright, since a
// version mismatch should surface as a clear error rather than a decode
// failure indistinguishable from a malformed payload.
func (r *Request) CheckVersion() *Error {
	if r.ProtocolVersion == "" {
		return nil
	}
	reqVersion, err := version.Parse(r.ProtocolVersion)
	if err != nil {
		return nil
	}
	serverVersion, err := version.Parse(version.Current)
	if err != nil || reqVersion.Compatible(serverVersion) {
		return nil
	}
	return &Error{
		Kind:    ErrorKindVersionMismatch,
		Message: "client protocol version " + r.ProtocolVersion + " is incompatible with server version " + version.Current,
	}
}

// Validate checks the parameter shape for Kind, independent of current
// timer state (state-dependent rejection never happens: start,
// pause, resume, and stop are idempotent and set_duration is valid in any
// state).
func (r *Request) Validate() error {
	switch r.Kind {
	case KindStart, KindGet, KindPause, KindResume, KindStop:
		if r.Seconds != nil {
			return &Error{Kind: ErrorKindDecode, Message: string(r.Kind) + " does not take a seconds parameter"}
		}
	case KindSetDuration:
		if r.Seconds == nil {
			return &Error{Kind: ErrorKindDecode, Message: "set_duration requires a seconds parameter"}
		}
		if *r.Seconds < 1 {
			return &Error{Kind: ErrorKindDecode, Message: "seconds must be >= 1"}
		}
	default:
		return &Error{Kind: ErrorKindDecode, Message: "unknown request kind: " + string(r.Kind)}
	}
	return nil
}

// StartRequest, GetRequest, PauseRequest, ResumeRequest, and StopRequest
// build the five parameter-less requests.
func StartRequest() *Request  { return &Request{Kind: KindStart} }
func GetRequest() *Request    { return &Request{Kind: KindGet} }
func PauseRequest() *Request  { return &Request{Kind: KindPause} }
func ResumeRequest() *Request { return &Request{Kind: KindResume} }
func StopRequest() *Request   { return &Request{Kind: KindStop} }

// SetDurationRequest builds a set_duration request for the given number of
// seconds.
func SetDurationRequest(seconds uint32) *Request {
	return &Request{Kind: KindSetDuration, Seconds: &seconds}
}

// Response is the decoded shape of one frame sent server -> client: exactly
// one of Snapshot or Error is set.
type Response struct {
	Snapshot *Snapshot `json:"snapshot,omitempty"`
	Error    *Error    `json:"error,omitempty"`
}

// OkResponse builds a successful response carrying snap.
func OkResponse(snap Snapshot) *Response { return &Response{Snapshot: &snap} }

// ErrResponse builds a failure response.
func ErrResponse(kind ErrorKind, message string) *Response {
	return &Response{Error: &Error{Kind: kind, Message: message}}
}

// ErrorKind enumerates the server's wire-level error taxonomy.
type ErrorKind string

const (
	ErrorKindConfig            ErrorKind = "config_error"
	ErrorKindState             ErrorKind = "state_error"
	ErrorKindDecode            ErrorKind = "decode_error"
	ErrorKindFrameTooLarge     ErrorKind = "frame_too_large"
	ErrorKindEndOfStream       ErrorKind = "end_of_stream"
	ErrorKindTransport         ErrorKind = "transport_error"
	ErrorKindHookRecoverable   ErrorKind = "hook_error_recoverable"
	ErrorKindHookFatal         ErrorKind = "hook_error_fatal"
	ErrorKindReentrancy        ErrorKind = "reentrancy_error"
	ErrorKindShutdownRequested ErrorKind = "shutdown_requested"
	ErrorKindVersionMismatch   ErrorKind = "version_mismatch"
)

// Error is the wire shape of a failed Response. It also satisfies the error
// interface so a *Response.Error can be returned directly by client code.
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

// LoopKind tags a wire-encoded CyclesCount.
type LoopKind string

const (
	LoopInfinite LoopKind = "infinite"
	LoopFixed    LoopKind = "fixed"
)

// CyclesCount is the wire encoding of [timer.TimerLoop]. N is meaningful
// only when Kind is LoopFixed.
type CyclesCount struct {
	Kind LoopKind `json:"kind"`
	N    uint32   `json:"n,omitempty"`
}

// Cycle is the wire encoding of [timer.Cycle].
type Cycle struct {
	Name            string `json:"name"`
	DurationSeconds uint32 `json:"duration_seconds"`
}

// Snapshot is the wire encoding of [timer.Snapshot]: state, the current
// cycle, remaining cycles_count, and elapsed_seconds. It intentionally
// omits the full Config — clients that need the cycle sequence learn it
// once at configuration time, not on every poll.
type Snapshot struct {
	State          string      `json:"state"`
	Cycle          Cycle       `json:"cycle"`
	CyclesCount    CyclesCount `json:"cycles_count"`
	ElapsedSeconds uint32      `json:"elapsed_seconds"`
}

// FromTimerSnapshot converts an internal [timer.Snapshot] to its wire
// representation.
func FromTimerSnapshot(s timer.Snapshot) Snapshot {
	cc := CyclesCount{Kind: LoopInfinite}
	if s.CyclesCount.Kind == timer.Fixed {
		cc = CyclesCount{Kind: LoopFixed, N: s.CyclesCount.N}
	}
	return Snapshot{
		State: s.State.String(),
		Cycle: Cycle{
			Name:            s.Cycle.Name,
			DurationSeconds: s.Cycle.DurationSeconds,
		},
		CyclesCount:    cc,
		ElapsedSeconds: s.ElapsedSeconds,
	}
}
