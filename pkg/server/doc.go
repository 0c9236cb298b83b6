// Package server owns the single timer a daemon exposes over one or more
// transport bindings. It is the Go-shaped equivalent of the original
// pomodoro's ThreadSafeTimer wrapper: a thin layer that locks nothing of
// its own (pkg/timer.Machine already guards itself), runs the tick loop,
// and translates wire Requests into Machine calls.
//
// Build a Server with NewBuilder, register transports with Bind, then call
// Run. Run blocks until ctx is cancelled, a fatal hook error is reported,
// or every bound transport's accept loop has drained.
package server
