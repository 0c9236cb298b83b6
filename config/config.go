// Package config loads the daemon's YAML configuration surface: the
// cycle sequence, loop policy, tick cadence, transport bindings, and which
// commands fire on which lifecycle hook.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pimalaya/timerd/pkg/timer"
)

// LoadError wraps a config parsing or validation failure with the file it
// came from.
type LoadError struct {
	File    string
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("config: %s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("config: %s", e.Message)
}

func (e *LoadError) Unwrap() error { return e.Cause }

// Cycle is one YAML-encoded cycle entry.
type Cycle struct {
	Name            string `yaml:"name"`
	DurationSeconds uint32 `yaml:"duration_seconds"`
}

// CyclesCount is the YAML encoding of a [timer.TimerLoop]: either the bare
// string "infinite" or a mapping {fixed: n}.
type CyclesCount struct {
	Infinite bool
	Fixed    uint32
}

// UnmarshalYAML accepts either the scalar "infinite" or a {fixed: n}
// mapping, the two shapes a cycles_count entry may take.
func (c *CyclesCount) UnmarshalYAML(value *yaml.Node) error {
	var scalar string
	if err := value.Decode(&scalar); err == nil {
		if scalar != "infinite" {
			return fmt.Errorf("cycles_count: unrecognized value %q", scalar)
		}
		c.Infinite = true
		return nil
	}

	var mapping struct {
		Fixed uint32 `yaml:"fixed"`
	}
	if err := value.Decode(&mapping); err != nil {
		return fmt.Errorf("cycles_count: expected \"infinite\" or {fixed: n}: %w", err)
	}
	c.Fixed = mapping.Fixed
	return nil
}

// ToTimerLoop converts the YAML shape to a [timer.TimerLoop].
func (c CyclesCount) ToTimerLoop() timer.TimerLoop {
	if c.Infinite {
		return timer.InfiniteLoop()
	}
	return timer.FixedLoop(c.Fixed)
}

// HookCommand is a shell command run when its registered event fires. The
// current timer snapshot is passed via environment variables (TIMERD_STATE,
// TIMERD_CYCLE, TIMERD_ELAPSED_SECONDS, TIMERD_CYCLE_DURATION_SECONDS)
// rather than on argv, so Command can
// be any executable the operator already has on PATH.
type HookCommand struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Binding is one transport binding descriptor. Kind selects the transport;
// only "tcp" is built in.
type Binding struct {
	Kind    string `yaml:"kind"`
	Address string `yaml:"address"`
}

// Discovery controls whether the server advertises itself via mDNS.
type Discovery struct {
	Enabled bool   `yaml:"enabled"`
	Name    string `yaml:"name"`
}

// TimerConfig is the full YAML configuration document for a timerd server.
type TimerConfig struct {
	Cycles         []Cycle                  `yaml:"cycles"`
	CyclesCount    CyclesCount              `yaml:"cycles_count"`
	TickIntervalMs uint32                   `yaml:"tick_interval_ms"`
	Bindings       []Binding                `yaml:"bindings"`
	Hooks          map[string][]HookCommand `yaml:"hooks"`
	Discovery      Discovery                `yaml:"discovery"`
}

// TickInterval converts TickIntervalMs to a time.Duration, defaulting to
// one second when unset.
func (c TimerConfig) TickInterval() time.Duration {
	if c.TickIntervalMs == 0 {
		return time.Second
	}
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// Validate checks the shape of the config independent of what
// [timer.Config.validate] later checks (empty cycles, zero duration,
// duplicate names): it rejects bindings of an unknown kind and hook
// mappings for an unrecognized event name, so a typo fails at load time
// rather than being silently ignored at runtime.
func (c TimerConfig) Validate() error {
	for _, b := range c.Bindings {
		if b.Kind != "tcp" {
			return fmt.Errorf("config: unsupported binding kind %q", b.Kind)
		}
		if b.Address == "" {
			return fmt.Errorf("config: tcp binding missing address")
		}
	}
	for event := range c.Hooks {
		if _, ok := eventKindNames[event]; !ok {
			return fmt.Errorf("config: unrecognized hook event %q", event)
		}
	}
	return nil
}

var eventKindNames = map[string]struct{}{
	"started":     {},
	"stopped":     {},
	"paused":      {},
	"resumed":     {},
	"begin_cycle": {},
	"end_cycle":   {},
}

// Parse parses a TimerConfig from YAML bytes and validates it.
func Parse(data []byte) (*TimerConfig, error) {
	var cfg TimerConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &LoadError{Message: "failed to parse YAML", Cause: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &LoadError{Message: err.Error()}
	}
	return &cfg, nil
}

// Load reads and parses a TimerConfig from path.
func Load(path string) (*TimerConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{File: path, Message: "failed to read file", Cause: err}
	}
	cfg, err := Parse(data)
	if err != nil {
		if le, ok := err.(*LoadError); ok {
			le.File = path
			return nil, le
		}
		return nil, err
	}
	return cfg, nil
}
