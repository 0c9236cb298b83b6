package timer

// Snapshot is a read-only, detached view of a [Machine] at a point in time.
// It is what [Machine.Get] returns and what every [hook.Hook] receives; a
// Snapshot shares no mutable state with the Machine that produced it.
type Snapshot struct {
	Config         Config
	State          TimerState
	Cycle          Cycle
	CyclesCount    TimerLoop
	ElapsedSeconds uint32
}
