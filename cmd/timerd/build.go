package main

import (
	"fmt"
	"log/slog"

	"github.com/pimalaya/timerd/config"
	"github.com/pimalaya/timerd/pkg/hook"
	"github.com/pimalaya/timerd/pkg/protolog"
	"github.com/pimalaya/timerd/pkg/server"
	"github.com/pimalaya/timerd/pkg/transport"
)

// buildServer assembles the Server described by cfg and the package-level
// CLI flags. The returned closer flushes and closes any protocol-log file
// opened along the way; callers must invoke it after Run returns.
func buildServer(cfg *config.TimerConfig, opLog *slog.Logger) (*server.Server, func() error, error) {
	builder := server.NewBuilder().
		Loop(cfg.CyclesCount.ToTimerLoop()).
		TickInterval(cfg.TickInterval()).
		OperationalLog(opLog).
		ShutdownOnFatalHook(false)

	for _, c := range cfg.Cycles {
		builder.AddCycle(c.Name, c.DurationSeconds)
	}

	closer := func() error { return nil }

	var loggers []protolog.Logger
	if cliConfig.ProtocolLog {
		loggers = append(loggers, protolog.NewSlogAdapter(opLog))
	}
	if cliConfig.ProtocolLogFile != "" {
		fileLogger, err := protolog.NewFileLogger(cliConfig.ProtocolLogFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening protocol log file: %w", err)
		}
		closer = fileLogger.Close
		loggers = append(loggers, protolog.NewCategoryFilter(fileLogger, protolog.CategoryState, protolog.CategoryError))
	}
	switch len(loggers) {
	case 0:
	case 1:
		builder.ProtocolLogger(loggers[0])
	default:
		builder.ProtocolLogger(protolog.NewMultiLogger(loggers...))
	}

	for kind, commands := range cfg.Hooks {
		eventKind, ok := parseEventKind(kind)
		if !ok {
			continue
		}
		for _, c := range commands {
			builder.OnHook(eventKind, commandHook(c))
		}
	}

	if len(cfg.Bindings) == 0 {
		return nil, nil, fmt.Errorf("config declares no bindings")
	}
	for _, binding := range cfg.Bindings {
		bind, err := openBinding(binding)
		if err != nil {
			return nil, nil, err
		}
		builder.Bind(bind)
	}

	srv, err := builder.Build()
	if err != nil {
		return nil, nil, err
	}
	return srv, closer, nil
}

func openBinding(b config.Binding) (transport.ServerBind, error) {
	switch b.Kind {
	case "tcp":
		return transport.ListenTCP(transport.TCPBindConfig{Address: b.Address})
	default:
		return nil, fmt.Errorf("unsupported binding kind %q", b.Kind)
	}
}

func parseEventKind(name string) (hook.EventKind, bool) {
	switch name {
	case "started":
		return hook.Started, true
	case "stopped":
		return hook.Stopped, true
	case "paused":
		return hook.Paused, true
	case "resumed":
		return hook.Resumed, true
	case "begin_cycle":
		return hook.BeginCycle, true
	case "end_cycle":
		return hook.EndCycle, true
	default:
		return 0, false
	}
}
