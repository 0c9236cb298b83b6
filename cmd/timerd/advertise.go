package main

import (
	"context"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/pimalaya/timerd/config"
	"github.com/pimalaya/timerd/pkg/discovery"
	"github.com/pimalaya/timerd/pkg/server"
	"github.com/pimalaya/timerd/pkg/transport"
)

const advertiseRefreshInterval = 5 * time.Second

func advertiseServer(ctx context.Context, adv *discovery.MDNSAdvertiser, cfg *config.TimerConfig, srv *server.Server) error {
	snap, err := srv.Machine().Get()
	if err != nil {
		return err
	}
	return adv.Advertise(ctx, discovery.Info{
		Name:  cfg.Discovery.Name,
		Port:  discoveryPort(cfg),
		State: snap.State.String(),
		Cycle: snap.Cycle.Name,
	})
}

// runAdvertiserRefresh keeps the advertised TXT records in sync with the
// timer's state, since a browsing client reads State/Cycle from the
// advertisement rather than connecting just to poll them.
func runAdvertiserRefresh(ctx context.Context, adv *discovery.MDNSAdvertiser, cfg *config.TimerConfig, srv *server.Server, opLog *slog.Logger) {
	t := time.NewTicker(advertiseRefreshInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap, err := srv.Machine().Get()
			if err != nil {
				continue
			}
			err = adv.Update(discovery.Info{
				Name:  cfg.Discovery.Name,
				Port:  discoveryPort(cfg),
				State: snap.State.String(),
				Cycle: snap.Cycle.Name,
			})
			if err != nil {
				opLog.Warn("mDNS TXT refresh failed", "error", err)
			}
		}
	}
}

func discoveryPort(cfg *config.TimerConfig) uint16 {
	for _, b := range cfg.Bindings {
		if b.Kind != "tcp" {
			continue
		}
		if port, ok := portFromAddress(b.Address); ok {
			return port
		}
	}
	return transport.DefaultPort
}

func portFromAddress(address string) (uint16, bool) {
	_, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return 0, false
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(port), true
}
