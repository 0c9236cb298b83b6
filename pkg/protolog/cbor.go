package protolog

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// eventEncMode is the CBOR encoder mode FileLogger and EncodeEvent use.
// A FileLogger.Log call happens on the dispatch or tick goroutine, so the
// encoding must stay deterministic and allocation-light: canonical key
// ordering, no indefinite-length containers, nanosecond timestamps so two
// StateChangeEvents a tick apart don't round-trip to the same instant.
var eventEncMode cbor.EncMode

// eventDecMode is the CBOR decoder mode Reader and DecodeEvent use to read
// back a file a FileLogger produced.
var eventDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	eventEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: building CBOR encoder mode: %v", err))
	}

	// A corrupt or partially-written trace file (e.g. timerd killed
	// mid-Encode) should yield readable events up to the break, not a hard
	// decode failure on the whole file.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	eventDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: building CBOR decoder mode: %v", err))
	}
}

// EncodeEvent encodes one Event to CBOR, using the same mode FileLogger
// writes with. Used by callers shipping a single event somewhere other
// than a FileLogger-managed file (e.g. over a debug socket).
func EncodeEvent(event Event) ([]byte, error) {
	return eventEncMode.Marshal(event)
}

// DecodeEvent decodes one CBOR-encoded Event, the inverse of EncodeEvent.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := eventDecMode.Unmarshal(data, &event); err != nil {
		return Event{}, err
	}
	return event, nil
}

// NewEncoder creates the CBOR stream encoder FileLogger appends events
// with.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return eventEncMode.NewEncoder(w)
}

// NewDecoder creates the CBOR stream decoder Reader uses to iterate a
// FileLogger's output.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return eventDecMode.NewDecoder(r)
}
