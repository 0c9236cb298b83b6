package transport

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pimalaya/timerd/pkg/protocol"
	"github.com/pimalaya/timerd/pkg/protolog"
)

// Framing constants.
const (
	// LengthPrefixSize is the size of the length prefix in bytes.
	LengthPrefixSize = 4

	// DefaultMaxMessageSize bounds a frame's payload to exactly what the
	// wire protocol allows: a JSON Request or Response can never need more
	// than protocol.MaxPayloadSize bytes, so the framing layer enforces the
	// same ceiling rather than carrying an independent, looser one.
	DefaultMaxMessageSize = protocol.MaxPayloadSize

	// MinMessageSize is the smallest payload a frame may carry. Every
	// Request/Response is a non-empty JSON object, so a zero-length frame
	// can only be a protocol violation, never a legitimate empty message.
	MinMessageSize = 1

	// MaxLogFrameDataSize bounds how much of a frame's body is copied into
	// a protolog.FrameEvent when -protocol-log is enabled. A set_duration
	// request or a Snapshot response both fit in a few hundred bytes, so
	// this exists purely to keep a misbehaving peer from blowing up the
	// trace file with an oversized frame, not to cap normal traffic.
	MaxLogFrameDataSize = 4096
)

// Framing errors.
var (
	// ErrMessageTooLarge indicates the frame's length prefix exceeds the
	// configured maximum, classified on the wire as
	// protocol.ErrorKindFrameTooLarge.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrMessageEmpty indicates a frame whose length prefix is below
	// MinMessageSize.
	ErrMessageEmpty = errors.New("message is empty")

	// ErrFrameTruncated indicates the connection closed mid-frame, after
	// the length prefix but before the full payload arrived.
	ErrFrameTruncated = errors.New("frame truncated")
)

// ClassifyFrameError maps a failure surfaced while reading a frame to the
// wire error kind a caller should report, so a server can answer an
// oversized or truncated request with a classified protocol.Response
// instead of silently dropping the connection. A clean end of stream
// (io.EOF) classifies as ErrorKindEndOfStream so callers can tell "the
// peer hung up" apart from "the peer sent garbage".
func ClassifyFrameError(err error) protocol.ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, io.EOF), errors.Is(err, ErrFrameTruncated):
		return protocol.ErrorKindEndOfStream
	case errors.Is(err, ErrMessageTooLarge):
		return protocol.ErrorKindFrameTooLarge
	}

	var perr *protocol.Error
	if errors.As(err, &perr) {
		return perr.Kind
	}
	return protocol.ErrorKindDecode
}

// FrameWriter writes length-prefixed Request/Response frames to an
// underlying writer.
type FrameWriter struct {
	w              io.Writer
	maxMessageSize uint32
	mu             sync.Mutex

	// protocol trace logging (optional, enabled by -protocol-log)
	logger protolog.Logger
	connID string
}

// NewFrameWriter creates a new frame writer.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{
		w:              w,
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// NewFrameWriterWithMaxSize creates a frame writer with a custom max size.
func NewFrameWriterWithMaxSize(w io.Writer, maxSize uint32) *FrameWriter {
	return &FrameWriter{
		w:              w,
		maxMessageSize: maxSize,
	}
}

// SetLogger attaches a protocol trace logger to this writer, tagging every
// logged frame with connID. Pass nil to disable logging.
func (fw *FrameWriter) SetLogger(logger protolog.Logger, connID string) {
	fw.logger = logger
	fw.connID = connID
}

// WriteFrame writes one encoded Request or Response as a length-prefixed
// frame. Thread-safe: can be called from multiple goroutines.
func (fw *FrameWriter) WriteFrame(data []byte) error {
	if uint32(len(data)) < MinMessageSize {
		return ErrMessageEmpty
	}
	if uint32(len(data)) > fw.maxMessageSize {
		return fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, len(data), fw.maxMessageSize)
	}

	fw.mu.Lock()
	defer fw.mu.Unlock()

	var lengthBuf [LengthPrefixSize]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(data)))

	if _, err := fw.w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := fw.w.Write(data); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}

	if fw.logger != nil {
		fw.logger.Log(fw.makeFrameEvent(data, protolog.DirectionOut))
	}

	return nil
}

func (fw *FrameWriter) makeFrameEvent(data []byte, direction protolog.Direction) protolog.Event {
	frameSize := LengthPrefixSize + len(data)
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: fw.connID,
		Direction:    direction,
		Layer:        protolog.LayerTransport,
		Category:     protolog.CategoryMessage,
		Frame: &protolog.FrameEvent{
			Size:      frameSize,
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// FrameReader reads length-prefixed Request/Response frames from an
// underlying reader.
type FrameReader struct {
	r              io.Reader
	maxMessageSize uint32
	lengthBuf      [LengthPrefixSize]byte

	// protocol trace logging (optional, enabled by -protocol-log)
	logger protolog.Logger
	connID string
}

// NewFrameReader creates a new frame reader.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:              r,
		maxMessageSize: DefaultMaxMessageSize,
	}
}

// NewFrameReaderWithMaxSize creates a frame reader with a custom max size.
func NewFrameReaderWithMaxSize(r io.Reader, maxSize uint32) *FrameReader {
	return &FrameReader{
		r:              r,
		maxMessageSize: maxSize,
	}
}

// SetLogger attaches a protocol trace logger to this reader, tagging every
// logged frame with connID. Pass nil to disable logging.
func (fr *FrameReader) SetLogger(logger protolog.Logger, connID string) {
	fr.logger = logger
	fr.connID = connID
}

// ReadFrame reads one length-prefixed frame and returns its payload
// (an encoded Request or Response), without the length prefix.
func (fr *FrameReader) ReadFrame() ([]byte, error) {
	if _, err := io.ReadFull(fr.r, fr.lengthBuf[:]); err != nil {
		if err == io.EOF {
			return nil, err
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}

	length := binary.BigEndian.Uint32(fr.lengthBuf[:])

	if length < MinMessageSize {
		return nil, ErrMessageEmpty
	}
	if length > fr.maxMessageSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, length, fr.maxMessageSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(fr.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, ErrFrameTruncated
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}

	if fr.logger != nil {
		fr.logger.Log(fr.makeFrameEvent(payload, protolog.DirectionIn))
	}

	return payload, nil
}

func (fr *FrameReader) makeFrameEvent(data []byte, direction protolog.Direction) protolog.Event {
	frameSize := LengthPrefixSize + len(data)
	frameData := data
	truncated := false

	if len(data) > MaxLogFrameDataSize {
		frameData = data[:MaxLogFrameDataSize]
		truncated = true
	}

	return protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: fr.connID,
		Direction:    direction,
		Layer:        protolog.LayerTransport,
		Category:     protolog.CategoryMessage,
		Frame: &protolog.FrameEvent{
			Size:      frameSize,
			Data:      frameData,
			Truncated: truncated,
		},
	}
}

// SetMaxMessageSize updates the maximum message size.
func (fr *FrameReader) SetMaxMessageSize(size uint32) {
	fr.maxMessageSize = size
}

// Framer combines frame reading and writing over one duplex connection.
type Framer struct {
	*FrameReader
	*FrameWriter
}

// NewFramer creates a new framer for bidirectional communication, bounded
// to DefaultMaxMessageSize (protocol.MaxPayloadSize).
func NewFramer(rw io.ReadWriter) *Framer {
	return &Framer{
		FrameReader: NewFrameReader(rw),
		FrameWriter: NewFrameWriter(rw),
	}
}

// NewFramerWithMaxSize creates a framer with a custom max message size.
func NewFramerWithMaxSize(rw io.ReadWriter, maxSize uint32) *Framer {
	return &Framer{
		FrameReader: NewFrameReaderWithMaxSize(rw, maxSize),
		FrameWriter: NewFrameWriterWithMaxSize(rw, maxSize),
	}
}

// SetLogger attaches a protocol trace logger to both the reader and writer
// half of this framer. Pass nil to disable logging.
func (f *Framer) SetLogger(logger protolog.Logger, connID string) {
	f.FrameReader.SetLogger(logger, connID)
	f.FrameWriter.SetLogger(logger, connID)
}

// FrameSize returns the total frame size including the length prefix.
func FrameSize(payloadSize int) int {
	return LengthPrefixSize + payloadSize
}
