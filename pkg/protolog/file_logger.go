package protolog

import (
	"os"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// FileLogger appends protocol events to a file as a CBOR stream, one Event
// per record. It is the persistence half of timerd's -protocol-log-file
// flag: a SlogAdapter shows an operator what's happening right now, a
// FileLogger leaves a record Reader can replay afterward to reconstruct
// exactly when a timer started, paused, or missed a cycle boundary.
// FileLogger is safe for concurrent use from multiple goroutines.
type FileLogger struct {
	file    *os.File
	encoder *cbor.Encoder
	mu      sync.Mutex
	closed  bool
}

// NewFileLogger creates a FileLogger appending to path, creating it with
// mode 0644 if it doesn't exist. Restarting timerd against the same path
// extends the trace rather than truncating it.
func NewFileLogger(path string) (*FileLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}
	return &FileLogger{
		file:    f,
		encoder: NewEncoder(f),
	}, nil
}

// Log appends event to the file. A handler that wants only StateChange and
// Error events persisted (the common case — Message/Frame volume isn't
// worth keeping past the current session) should wrap this FileLogger in a
// CategoryFilter rather than filtering here; FileLogger itself writes
// whatever it's given.
func (l *FileLogger) Log(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}

	// A trace file exists to help debug a misbehaving timer; failing to
	// encode one event must not take the timer down with it.
	_ = l.encoder.Encode(event)
}

// Close flushes and closes the log file. Safe to call more than once; a
// Log call after Close is silently dropped rather than reopening the file.
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	return l.file.Close()
}

// Compile-time interface satisfaction check.
var _ Logger = (*FileLogger)(nil)
