// Command timerd is the reference timer daemon: it loads a YAML
// configuration, builds a server.Server around one timer.Machine, binds it
// to one or more transports, and serves until a shutdown signal arrives.
//
// Usage:
//
//	timerd [flags]
//
// Flags:
//
//	-config string           Configuration file path (required)
//	-log-level string        Log level: debug, info, warn, error (default "info")
//	-protocol-log            Log every request/response frame at debug level
//	-protocol-log-file string  Persist state and error events as CBOR to this file
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pimalaya/timerd/config"
	"github.com/pimalaya/timerd/pkg/discovery"
)

var cliConfig struct {
	ConfigFile      string
	LogLevel        string
	ProtocolLog     bool
	ProtocolLogFile string
}

func init() {
	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Configuration file path")
	flag.StringVar(&cliConfig.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.BoolVar(&cliConfig.ProtocolLog, "protocol-log", false, "Log every request/response frame at debug level")
	flag.StringVar(&cliConfig.ProtocolLogFile, "protocol-log-file", "", "Persist state and error events as CBOR to this file")
}

func main() {
	flag.Parse()

	opLog := newOperationalLogger(cliConfig.LogLevel)
	slog.SetDefault(opLog)

	if cliConfig.ConfigFile == "" {
		log.Fatal("timerd: -config is required")
	}

	cfg, err := config.Load(cliConfig.ConfigFile)
	if err != nil {
		log.Fatalf("timerd: %v", err)
	}

	srv, closeProtocolLog, err := buildServer(cfg, opLog)
	if err != nil {
		log.Fatalf("timerd: failed to build server: %v", err)
	}
	defer func() {
		if err := closeProtocolLog(); err != nil {
			opLog.Warn("closing protocol log file", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var advertiser *discovery.MDNSAdvertiser
	if cfg.Discovery.Enabled {
		advertiser = discovery.NewMDNSAdvertiser()
		if err := advertiseServer(ctx, advertiser, cfg, srv); err != nil {
			opLog.Warn("mDNS advertise failed", "error", err)
			advertiser = nil
		} else {
			defer advertiser.Stop()
			go runAdvertiserRefresh(ctx, advertiser, cfg, srv, opLog)
		}
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- srv.Run(ctx) }()

	select {
	case sig := <-sigCh:
		opLog.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	case err := <-runErrCh:
		if err != nil {
			opLog.Error("server exited with error", "error", err)
		}
		return
	}

	<-runErrCh
	opLog.Info("timerd stopped")
}

func newOperationalLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
