package timer

import "time"

// Config is the immutable-at-construction shape of a timer: its cycle
// sequence, how many passes it should run for, and how often the owning
// server should call [Machine.Tick].
type Config struct {
	Cycles      CyclesSet
	CyclesCount TimerLoop
	// TickInterval is advisory to the caller driving Tick; the timer's own
	// arithmetic never assumes ticks arrive exactly this often.
	TickInterval time.Duration
}

func (c Config) clone() Config {
	return Config{
		Cycles:       c.Cycles.clone(),
		CyclesCount:  c.CyclesCount,
		TickInterval: c.TickInterval,
	}
}

// ConfigErrorKind tags the reason a [Config] was rejected.
type ConfigErrorKind uint8

const (
	ConfigErrorEmptyCycles ConfigErrorKind = iota
	ConfigErrorEmptyCycleName
	ConfigErrorZeroDuration
	ConfigErrorDuplicateCycleName
	ConfigErrorFixedZero
)

// ConfigError is returned by [New] when a [Config] violates an invariant of
// the cycle-driven timer.
type ConfigError struct {
	Kind      ConfigErrorKind
	CycleName string
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigErrorEmptyCycles:
		return "timer: config has no cycles"
	case ConfigErrorEmptyCycleName:
		return "timer: cycle has an empty name"
	case ConfigErrorZeroDuration:
		return "timer: cycle " + e.CycleName + " has zero duration"
	case ConfigErrorDuplicateCycleName:
		return "timer: duplicate cycle name " + e.CycleName
	case ConfigErrorFixedZero:
		return "timer: cycles_count is fixed(0)"
	default:
		return "timer: invalid config"
	}
}

func (c Config) validate() error {
	if err := c.Cycles.validate(); err != nil {
		return err
	}
	if c.CyclesCount.exhausted() {
		return &ConfigError{Kind: ConfigErrorFixedZero}
	}
	return nil
}
