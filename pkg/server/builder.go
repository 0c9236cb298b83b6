package server

import (
	"log/slog"
	"time"

	"github.com/pimalaya/timerd/pkg/clock"
	"github.com/pimalaya/timerd/pkg/hook"
	"github.com/pimalaya/timerd/pkg/protolog"
	"github.com/pimalaya/timerd/pkg/timer"
	"github.com/pimalaya/timerd/pkg/transport"
)

// defaultTickInterval is used when the builder is never told a cadence.
const defaultTickInterval = time.Second

// Builder assembles a Server: add cycles
// in order, set the loop policy, set the tick cadence, register hooks per
// event, then add one or more transport binders.
type Builder struct {
	cycles       timer.CyclesSet
	loop         timer.TimerLoop
	loopSet      bool
	tickInterval time.Duration
	hooks        hook.Registry[timer.Snapshot]
	clock        clock.Clock
	logger       protolog.Logger
	opLog        *slog.Logger
	binders      []transport.ServerBind
	shutdownOnFatalHook bool
}

// NewBuilder starts an empty Builder. The loop defaults to infinite and the
// tick cadence to one second unless overridden.
func NewBuilder() *Builder {
	return &Builder{loop: timer.InfiniteLoop(), tickInterval: defaultTickInterval}
}

// AddCycle appends one named, fixed-duration cycle. Order is significant —
// the first cycle added is the one a stopped timer reports and the one
// Start enters.
func (b *Builder) AddCycle(name string, durationSeconds uint32) *Builder {
	b.cycles = append(b.cycles, timer.Cycle{Name: name, DurationSeconds: durationSeconds})
	return b
}

// Loop sets the cycles_count policy. Defaults to infinite if never called.
func (b *Builder) Loop(loop timer.TimerLoop) *Builder {
	b.loop = loop
	b.loopSet = true
	return b
}

// TickInterval sets the cadence at which the server's background task
// calls Machine.Tick. Defaults to one second.
func (b *Builder) TickInterval(d time.Duration) *Builder {
	b.tickInterval = d
	return b
}

// OnHook registers h for kind, in the order Builder.OnHook is called.
func (b *Builder) OnHook(kind hook.EventKind, h hook.Hook[timer.Snapshot]) *Builder {
	b.hooks.Register(kind, h)
	return b
}

// Clock overrides the clock driving tick arithmetic; tests use a
// clock.Fake, production leaves this unset for clock.RealClock.
func (b *Builder) Clock(c clock.Clock) *Builder {
	b.clock = c
	return b
}

// ProtocolLogger wires a protolog.Logger that captures decoded request and
// response traffic at LayerProtocol.
func (b *Builder) ProtocolLogger(l protolog.Logger) *Builder {
	b.logger = l
	return b
}

// OperationalLog sets the slog.Logger used for server lifecycle and error
// logging (accept failures, hook errors), as distinct from the protocol
// event trace.
func (b *Builder) OperationalLog(l *slog.Logger) *Builder {
	b.opLog = l
	return b
}

// Bind registers a transport to accept connections on. Run accepts on
// every bound transport concurrently.
func (b *Builder) Bind(bind transport.ServerBind) *Builder {
	b.binders = append(b.binders, bind)
	return b
}

// ShutdownOnFatalHook changes the fatal-hook policy from the default
// (log and continue) to initiating server shutdown, since
// this is implementation-configurable.
func (b *Builder) ShutdownOnFatalHook(shutdown bool) *Builder {
	b.shutdownOnFatalHook = shutdown
	return b
}

// Build validates the accumulated configuration and constructs a Server.
// Config errors (empty cycles, zero duration, a fixed(0) loop) surface
// here, never from Run.
func (b *Builder) Build() (*Server, error) {
	opLog := b.opLog
	if opLog == nil {
		opLog = slog.Default()
	}
	logger := b.logger
	if logger == nil {
		logger = protolog.NoopLogger{}
	}

	cfg := timer.Config{
		Cycles:       b.cycles,
		CyclesCount:  b.loop,
		TickInterval: b.tickInterval,
	}

	s := &Server{
		tickInterval:        b.tickInterval,
		clock:               b.clock,
		binders:             append([]transport.ServerBind(nil), b.binders...),
		protoLog:            logger,
		opLog:               opLog,
		shutdownOnFatalHook: b.shutdownOnFatalHook,
	}
	if s.clock == nil {
		s.clock = clock.RealClock{}
	}

	machine, err := timer.New(cfg, &b.hooks, s.clock, s.onHookError)
	if err != nil {
		return nil, err
	}
	s.machine = machine
	return s, nil
}
