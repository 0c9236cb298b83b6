// Package timer implements the cycle-driven interval timer state machine:
// an ordered, looping sequence of named, fixed-duration cycles, advanced by
// monotonic catch-up tick arithmetic rather than by counting tick
// invocations. The package is intentionally free of I/O and goroutines —
// [Machine] is a mutex-guarded value; callers (the server package) own the
// background goroutine that calls [Machine.Tick] on a cadence and the
// transport that turns wire requests into [Machine] method calls.
package timer
