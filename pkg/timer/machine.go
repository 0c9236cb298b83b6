package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/pimalaya/timerd/pkg/clock"
	"github.com/pimalaya/timerd/pkg/hook"
)

// OnHookError is called synchronously, while the Machine's lock is held,
// whenever a registered hook returns an error. The callback must not call
// back into the Machine that invoked it — doing so observes hooksRunning
// set and fails with [ErrReentrancy] rather than deadlocking. It decides
// whether a [hook.Fatal] error should translate into a shutdown request;
// the timer package itself has no shutdown policy.
type OnHookError func(event hook.Event, err *hook.Error)

// Machine is the mutex-guarded cycle-driven timer state machine. The zero
// value is not usable; construct one with [New].
type Machine struct {
	mu    sync.Mutex
	clock clock.Clock
	hooks *hook.Registry[Snapshot]
	onErr OnHookError

	config      Config
	state       TimerState
	cycleIndex  int
	elapsed     uint32
	cyclesCount TimerLoop
	lastTickAt  time.Time

	// hooksRunning is true only while the goroutine holding mu is inside
	// runHooksLocked. Checked by every public method before it attempts
	// mu.Lock so a same-goroutine reentrant call fails fast instead of
	// deadlocking.
	hooksRunning atomic.Bool
}

// New constructs a Machine in the Stopped state. cfg is validated against
// the invariants a CyclesSet must hold: non-empty, unique, non-empty names
// and non-zero durations, and a CyclesCount that is not already Fixed(0).
//
// hooks may be nil, equivalent to an empty registry. clk may be nil, in
// which case [clock.RealClock] is used. onErr may be nil, in which case
// hook errors are silently swallowed beyond the logging the hook itself
// may have done.
func New(cfg Config, hooks *hook.Registry[Snapshot], clk clock.Clock, onErr OnHookError) (*Machine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if hooks == nil {
		hooks = &hook.Registry[Snapshot]{}
	}
	return &Machine{
		clock:       clk,
		hooks:       hooks,
		onErr:       onErr,
		config:      cfg.clone(),
		state:       Stopped,
		cycleIndex:  0,
		elapsed:     0,
		cyclesCount: cfg.CyclesCount,
	}, nil
}

// Get returns the current snapshot without mutating state.
func (m *Machine) Get() (Snapshot, error) {
	if m.hooksRunning.Load() {
		return Snapshot{}, ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(), nil
}

// Start transitions Stopped -> Running, resetting elapsed to zero, the
// current cycle to the first configured cycle, and cycles_count to the
// configured value. Calling Start while Running or Paused is a no-op that
// returns the current snapshot unchanged — Start never raises a state
// error.
func (m *Machine) Start() (Snapshot, error) {
	if m.hooksRunning.Load() {
		return Snapshot{}, ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Stopped {
		m.state = Running
		m.cycleIndex = 0
		m.elapsed = 0
		m.cyclesCount = m.config.CyclesCount
		m.lastTickAt = m.clock.Now()
		m.runHooksLocked(hook.StartedEvent(), hook.BeginCycleEvent(m.currentCycleLocked().Name))
	}
	return m.snapshotLocked(), nil
}

// Pause transitions Running -> Paused. Before switching state it flushes
// the running interval up to now using the same catch-up arithmetic as
// [Machine.Tick], so that real time elapsed between the last tick and this
// call is not later lost, and so the paused interval starts from exactly
// this instant. Calling Pause while Stopped or already Paused is a no-op.
func (m *Machine) Pause() (Snapshot, error) {
	if m.hooksRunning.Load() {
		return Snapshot{}, ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Running {
		m.advanceLocked(m.clock.Now())
		if m.state == Running {
			m.state = Paused
			m.lastTickAt = m.clock.Now()
			m.runHooksLocked(hook.PausedEvent())
		}
	}
	return m.snapshotLocked(), nil
}

// Resume transitions Paused -> Running. last_tick_at is reset to now so the
// paused interval is excluded from the next catch-up computation. Calling
// Resume while Stopped or already Running is a no-op.
func (m *Machine) Resume() (Snapshot, error) {
	if m.hooksRunning.Load() {
		return Snapshot{}, ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == Paused {
		m.state = Running
		m.lastTickAt = m.clock.Now()
		m.runHooksLocked(hook.ResumedEvent())
	}
	return m.snapshotLocked(), nil
}

// Stop transitions any state to Stopped, resetting elapsed to zero and the
// current cycle to the first configured cycle. Unlike the automatic stop
// triggered by cycles_count exhausting inside [Machine.Tick], a caller-
// initiated Stop always fires EndCycle for whatever cycle was in progress,
// since that cycle never reached its own boundary. Stop is idempotent:
// calling it while already Stopped leaves the state unchanged and fires
// only the Stopped hook, not EndCycle.
func (m *Machine) Stop() (Snapshot, error) {
	if m.hooksRunning.Load() {
		return Snapshot{}, ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopLocked(true)
	return m.snapshotLocked(), nil
}

// SetDuration replaces the duration of the current cycle. If the new
// duration is shorter than the elapsed time already accumulated in this
// cycle, elapsed is clamped to duration-1 so the cycle does not appear to
// have already finished. Valid in every state, including Stopped (it
// mutates cycles[0], the cycle Stopped always reports).
func (m *Machine) SetDuration(seconds uint32) (Snapshot, error) {
	if seconds == 0 {
		return Snapshot{}, ErrInvalidDuration
	}
	if m.hooksRunning.Load() {
		return Snapshot{}, ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.config.Cycles[m.cycleIndex].DurationSeconds = seconds
	if m.elapsed > seconds-1 {
		m.elapsed = seconds - 1
	}
	return m.snapshotLocked(), nil
}

// Tick is the single entry point the owning server calls on a cadence. It
// is a no-op unless the Machine is Running: catching up is never performed
// while Paused or Stopped, which is what keeps paused/stopped intervals
// from contributing to elapsed_seconds.
func (m *Machine) Tick(now time.Time) error {
	if m.hooksRunning.Load() {
		return ErrReentrancy
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.advanceLocked(now)
	return nil
}

func (m *Machine) currentCycleLocked() Cycle {
	return m.config.Cycles[m.cycleIndex]
}

// advanceLocked performs the monotonic catch-up arithmetic. It must
// be called with mu held. It deliberately never does "elapsed += 1 per
// tick": it computes the whole-second duration since last_tick_at, rounded
// down, and walks cycle boundaries as many times as that duration spans,
// so a delayed or coalesced wakeup still produces the exact sequence of
// EndCycle/BeginCycle hooks a perfectly-timed one would have.
func (m *Machine) advanceLocked(now time.Time) {
	if m.state != Running {
		return
	}

	delta := now.Sub(m.lastTickAt)
	wholeSeconds := int64(delta / time.Second)
	if wholeSeconds <= 0 {
		return
	}
	// last_tick_at advances only by the whole seconds just consumed, not to
	// now: the sub-second remainder stays pending so fractional progress
	// accumulates correctly across many short ticks (e.g. a 250ms tick
	// interval against 1s cycles).
	m.lastTickAt = m.lastTickAt.Add(time.Duration(wholeSeconds) * time.Second)
	m.elapsed += uint32(wholeSeconds)

	for {
		cur := m.currentCycleLocked()
		if m.elapsed < cur.DurationSeconds {
			return
		}
		m.elapsed -= cur.DurationSeconds
		m.runHooksLocked(hook.EndCycleEvent(cur.Name))

		wrapped := m.cycleIndex == len(m.config.Cycles)-1
		m.cycleIndex = (m.cycleIndex + 1) % len(m.config.Cycles)
		if wrapped {
			m.cyclesCount = m.cyclesCount.decremented()
			if m.cyclesCount.exhausted() {
				m.stopLocked(false)
				return
			}
		}
		m.runHooksLocked(hook.BeginCycleEvent(m.currentCycleLocked().Name))
	}
}

// stopLocked transitions to Stopped. When firedByBoundary is false, the
// call originates from advanceLocked having just exhausted cycles_count:
// the EndCycle for the cycle that just completed was already fired as part
// of that boundary crossing, so only the Stopped event fires here. When
// true (a caller-initiated Stop), the in-progress cycle never reached its
// own boundary, so EndCycle fires first, unless already Stopped.
func (m *Machine) stopLocked(firedByBoundary bool) {
	if firedByBoundary && m.state != Stopped {
		m.runHooksLocked(hook.EndCycleEvent(m.currentCycleLocked().Name))
	}
	m.state = Stopped
	m.cycleIndex = 0
	m.elapsed = 0
	m.runHooksLocked(hook.StoppedEvent())
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		Config:         m.config.clone(),
		State:          m.state,
		Cycle:          m.currentCycleLocked(),
		CyclesCount:    m.cyclesCount,
		ElapsedSeconds: m.elapsed,
	}
}

// runHooksLocked fires each event's registered hooks in registration order
// while mu is held. It is the only place hooksRunning is set, bracketing
// exactly the window in which a reentrant call must be rejected rather
// than deadlock.
func (m *Machine) runHooksLocked(events ...hook.Event) {
	m.hooksRunning.Store(true)
	defer m.hooksRunning.Store(false)

	snap := m.snapshotLocked()
	for _, ev := range events {
		for _, h := range m.hooks.For(ev.Kind) {
			err := h.Call(snap)
			if err == nil {
				continue
			}
			herr, ok := err.(*hook.Error)
			if !ok {
				herr = hook.Recoverablef("%w", err)
			}
			if m.onErr != nil {
				m.onErr(ev, herr)
			}
		}
	}
}
