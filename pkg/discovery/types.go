package discovery

import (
	"context"
	"errors"
)

// ServiceType is the DNS-SD service type timer servers advertise under.
const ServiceType = "_timerd._tcp"

// Domain is the mDNS domain servers advertise and clients browse in.
const Domain = "local"

// TXT record keys.
const (
	txtKeyState = "state" // current TimerState, e.g. "running"
	txtKeyCycle = "cycle" // current cycle name
	txtKeyName  = "name"  // a human-readable server label
)

var (
	// ErrNotFound is returned by MDNSAdvertiser.Update when no service is
	// currently advertised.
	ErrNotFound = errors.New("discovery: service not found")
)

// Info is what a server advertises: its identity and current snapshot,
// refreshed via Advertiser.Update as the timer changes state.
type Info struct {
	// Name is a human-readable label for the server (e.g. a hostname).
	Name string
	// Port is the TCP port clients should dial.
	Port uint16
	// State and Cycle mirror the wire Snapshot, so a browsing client can
	// show timer status without connecting first.
	State string
	Cycle string
}

// Service is one discovered timer server.
type Service struct {
	InstanceName string
	Host         string
	Port         uint16
	Addresses    []string
	Name         string
	State        string
	Cycle        string
}

// Advertiser publishes one timer server's presence on the local network.
type Advertiser interface {
	// Advertise registers the service. Calling it again replaces the
	// previous registration.
	Advertise(ctx context.Context, info Info) error
	// Update refreshes the TXT records of an already-advertised service
	// (e.g. after a state change) without re-registering.
	Update(info Info) error
	// Stop withdraws the advertisement.
	Stop() error
}

// Browser searches for advertised timer servers.
type Browser interface {
	// Browse returns a channel of discovered services. It closes the
	// channel when ctx is cancelled.
	Browse(ctx context.Context) (<-chan *Service, error)
}
