package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pimalaya/timerd/pkg/client"
	"github.com/pimalaya/timerd/pkg/protocol"
)

func runOneShot(ctx context.Context, c *client.Client, args []string) (*protocol.Snapshot, error) {
	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "start":
		return c.Start(ctx)
	case "get":
		return c.Get(ctx)
	case "pause":
		return c.Pause(ctx)
	case "resume":
		return c.Resume(ctx)
	case "stop":
		return c.Stop(ctx)
	case "set-duration":
		if len(rest) != 1 {
			exitUsage("Usage: timerctl set-duration <seconds>")
			return nil, nil
		}
		seconds, err := strconv.ParseUint(rest[0], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid seconds: %w", err)
		}
		return c.SetDuration(ctx, uint32(seconds))
	default:
		exitUsage("Unknown subcommand: %s (start|get|pause|resume|stop|set-duration)", cmd)
		return nil, nil
	}
}

func formatSnapshot(snap protocol.Snapshot) string {
	loop := snap.CyclesCount.Kind
	if loop == protocol.LoopFixed {
		return fmt.Sprintf("state=%s cycle=%s elapsed=%ds/%ds remaining_cycles=%d",
			snap.State, snap.Cycle.Name, snap.ElapsedSeconds, snap.Cycle.DurationSeconds, snap.CyclesCount.N)
	}
	return fmt.Sprintf("state=%s cycle=%s elapsed=%ds/%ds remaining_cycles=infinite",
		snap.State, snap.Cycle.Name, snap.ElapsedSeconds, snap.Cycle.DurationSeconds)
}
