package timer

import "errors"

// ErrReentrancy is returned by every [Machine] method when called, directly
// or indirectly, from within a hook invoked by that same Machine. Go's
// sync.Mutex is not reentrant, so this is checked before the method ever
// attempts to acquire the lock: a goroutine observing the flag set can only
// be the one goroutine currently holding the lock and running hooks.
var ErrReentrancy = errors.New("timer: reentrant call from within a hook")

// ErrInvalidDuration is returned by [Machine.SetDuration] for a requested
// duration of zero seconds.
var ErrInvalidDuration = errors.New("timer: duration must be at least 1 second")
