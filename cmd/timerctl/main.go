// Command timerctl is a client for timerd. Run without a subcommand for an
// interactive readline shell; run with a subcommand for a single one-shot
// request.
//
// Usage:
//
//	timerctl [flags]
//	timerctl [flags] <start|get|pause|resume|stop|set-duration> [seconds]
//	timerctl -discover
//
// Flags:
//
//	-address string   Server address (default "127.0.0.1:7677")
//	-timeout duration Per-request timeout (default 5s)
//	-discover         Browse for timerd instances advertised via mDNS and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pimalaya/timerd/pkg/client"
	"github.com/pimalaya/timerd/pkg/transport"
)

var cliConfig struct {
	Address  string
	Timeout  time.Duration
	Discover bool
}

func init() {
	flag.StringVar(&cliConfig.Address, "address", fmt.Sprintf("127.0.0.1:%d", transport.DefaultPort), "Server address")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 5*time.Second, "Per-request timeout")
	flag.BoolVar(&cliConfig.Discover, "discover", false, "Browse for timerd instances advertised via mDNS and exit")
}

func main() {
	flag.Parse()

	if cliConfig.Discover {
		runDiscover()
		return
	}

	connect := transport.NewTCPConnect(transport.TCPConnectConfig{Address: cliConfig.Address})

	args := flag.Args()
	if len(args) == 0 {
		runInteractive(connect)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), cliConfig.Timeout)
	defer cancel()

	c, err := client.Dial(ctx, connect)
	if err != nil {
		log.Fatalf("timerctl: connect to %s: %v", cliConfig.Address, err)
	}
	defer c.Close()

	snap, err := runOneShot(ctx, c, args)
	if err != nil {
		log.Fatalf("timerctl: %v", err)
	}
	fmt.Println(formatSnapshot(*snap))
}

// runInteractive drives the shell with a ManagedClient rather than a plain
// Client: an unattended readline session should survive the daemon
// restarting underneath it, reconnecting with backoff instead of leaving
// every subsequent command failing with "not connected".
func runInteractive(connect transport.ClientConnect) {
	mc := client.NewManaged(connect)
	mc.OnReconnecting(func(attempt int, delay time.Duration) {
		fmt.Fprintf(os.Stderr, "timerctl: connection lost, reconnecting (attempt %d, retrying in %s)...\n", attempt, delay.Round(time.Millisecond))
	})

	ctx, cancel := context.WithTimeout(context.Background(), cliConfig.Timeout)
	err := mc.Connect(ctx)
	cancel()
	if err != nil {
		log.Fatalf("timerctl: connect to %s: %v", cliConfig.Address, err)
	}
	defer mc.Close()

	shell, err := newShell(mc)
	if err != nil {
		log.Fatalf("timerctl: %v", err)
	}
	defer shell.Close()

	shell.Run()
}

func exitUsage(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(2)
}
