package timer

// Cycle is one named, fixed-duration phase of the timer (e.g. "work",
// "short_break", "long_break").
type Cycle struct {
	Name            string
	DurationSeconds uint32
}

// CyclesSet is the ordered, non-empty sequence of [Cycle]s the timer loops
// through. Order is significant: the cycle after the last one is the first.
type CyclesSet []Cycle

func (cycles CyclesSet) validate() error {
	if len(cycles) == 0 {
		return &ConfigError{Kind: ConfigErrorEmptyCycles}
	}
	seen := make(map[string]struct{}, len(cycles))
	for _, c := range cycles {
		if c.Name == "" {
			return &ConfigError{Kind: ConfigErrorEmptyCycleName}
		}
		if c.DurationSeconds == 0 {
			return &ConfigError{Kind: ConfigErrorZeroDuration, CycleName: c.Name}
		}
		if _, dup := seen[c.Name]; dup {
			return &ConfigError{Kind: ConfigErrorDuplicateCycleName, CycleName: c.Name}
		}
		seen[c.Name] = struct{}{}
	}
	return nil
}

func (cycles CyclesSet) clone() CyclesSet {
	out := make(CyclesSet, len(cycles))
	copy(out, cycles)
	return out
}
