package protolog

// MultiLogger fans one event out to several sinks at once. timerd's typical
// wiring pairs a SlogAdapter (operator-facing, human-readable, every
// category) with a CategoryFilter over a FileLogger (machine-readable CBOR,
// state and error events only) so a postmortem can replay exactly when a
// timer transitioned without sifting through message-level chatter.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger that sends events to every logger
// in loggers, in order.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	return &MultiLogger{loggers: loggers}
}

// Log sends event to every configured logger. A slow or blocking logger
// delays the rest; callers needing isolation should buffer upstream of
// MultiLogger rather than inside it.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Loggers returns the fan-out targets, for tests asserting on wiring.
func (m *MultiLogger) Loggers() []Logger {
	return append([]Logger(nil), m.loggers...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*MultiLogger)(nil)
