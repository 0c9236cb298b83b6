package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/pimalaya/timerd/pkg/protocol"
)

// timerClient is the subset of client.Client and client.ManagedClient the
// shell drives. Accepting the interface rather than a concrete type lets
// newShell run against either a plain Client or a reconnecting
// ManagedClient without the shell loop caring which.
type timerClient interface {
	Start(ctx context.Context) (*protocol.Snapshot, error)
	Get(ctx context.Context) (*protocol.Snapshot, error)
	Pause(ctx context.Context) (*protocol.Snapshot, error)
	Resume(ctx context.Context) (*protocol.Snapshot, error)
	Stop(ctx context.Context) (*protocol.Snapshot, error)
	SetDuration(ctx context.Context, seconds uint32) (*protocol.Snapshot, error)
}

// shell is the interactive timerctl command loop: one readline prompt,
// dispatched to one timerClient call per line.
type shell struct {
	c  timerClient
	rl *readline.Instance
}

func newShell(c timerClient) (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "timerctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{c: c, rl: rl}, nil
}

func (s *shell) Close() error { return s.rl.Close() }

func (s *shell) Run() {
	s.printHelp()

	for {
		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()
		case "start":
			s.report(s.c.Start(context.Background()))
		case "get", "status":
			s.report(s.c.Get(context.Background()))
		case "pause":
			s.report(s.c.Pause(context.Background()))
		case "resume":
			s.report(s.c.Resume(context.Background()))
		case "stop":
			s.report(s.c.Stop(context.Background()))
		case "set-duration", "duration":
			s.cmdSetDuration(args)
		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			return
		default:
			fmt.Fprintf(s.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.rl.Stdout(), `
timerctl Commands:
  start                - Start the timer
  get, status          - Show the current snapshot
  pause                - Pause the timer
  resume               - Resume the timer
  stop                 - Stop the timer
  set-duration <secs>  - Set the current cycle's remaining duration
  help                 - Show this help
  quit                 - Exit timerctl`)
}

func (s *shell) cmdSetDuration(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(s.rl.Stdout(), "Usage: set-duration <seconds>")
		return
	}
	seconds, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Invalid seconds: %v\n", err)
		return
	}
	s.report(s.c.SetDuration(context.Background(), uint32(seconds)))
}

func (s *shell) report(snap *protocol.Snapshot, err error) {
	if err != nil {
		fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		return
	}
	fmt.Fprintln(s.rl.Stdout(), formatSnapshot(*snap))
}
