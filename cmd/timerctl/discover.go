package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pimalaya/timerd/pkg/discovery"
)

const discoverWindow = 3 * time.Second

// runDiscover browses for advertised timerd instances for a fixed window
// and prints what it finds, grounded on timerctl's one-shot subcommand
// shape: a single bounded operation that prints and exits, not a long-lived
// session like the interactive shell.
func runDiscover() {
	ctx, cancel := context.WithTimeout(context.Background(), discoverWindow)
	defer cancel()

	browser := discovery.NewMDNSBrowser()
	found, err := browser.Browse(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "timerctl: discover: %v\n", err)
		os.Exit(1)
	}

	seen := 0
	for svc := range found {
		seen++
		fmt.Printf("%s  %s:%d  state=%s cycle=%s\n", svc.InstanceName, svc.Host, svc.Port, svc.State, svc.Cycle)
	}
	if seen == 0 {
		fmt.Println("No timerd instances found")
	}
}
