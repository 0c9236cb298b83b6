package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser implements Advertiser using zeroconf.
type MDNSAdvertiser struct {
	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates an advertiser with nothing registered yet.
func NewMDNSAdvertiser() *MDNSAdvertiser {
	return &MDNSAdvertiser{}
}

// Advertise registers info under ServiceType, replacing any previous
// registration this advertiser holds.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	instance := info.Name
	if instance == "" {
		instance = "timerd"
	}

	server, err := zeroconf.Register(instance, ServiceType, Domain, int(info.Port), encodeTXT(info), nil)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", instance, err)
	}
	a.server = server
	return nil
}

// Update replaces the TXT records of the currently-advertised service.
func (a *MDNSAdvertiser) Update(info Info) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return ErrNotFound
	}
	a.server.SetText(encodeTXT(info))
	return nil
}

// Stop withdraws the advertisement, if any.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

// MDNSBrowser implements Browser using zeroconf.
type MDNSBrowser struct{}

// NewMDNSBrowser creates a browser.
func NewMDNSBrowser() *MDNSBrowser {
	return &MDNSBrowser{}
}

// Browse searches for ServiceType instances until ctx is cancelled.
func (b *MDNSBrowser) Browse(ctx context.Context) (<-chan *Service, error) {
	out := make(chan *Service)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	go func() {
		defer close(out)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				svc := entryToService(entry)
				select {
				case out <- svc:
				case <-ctx.Done():
					return
				}
			case _, ok := <-removed:
				if !ok {
					continue
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed)
	}()

	return out, nil
}

func encodeTXT(info Info) []string {
	txt := []string{
		txtKeyState + "=" + info.State,
		txtKeyCycle + "=" + info.Cycle,
	}
	if info.Name != "" {
		txt = append(txt, txtKeyName+"="+info.Name)
	}
	return txt
}

func decodeTXT(records []string) (state, cycle, name string) {
	for _, r := range records {
		for i := 0; i < len(r); i++ {
			if r[i] != '=' {
				continue
			}
			key, val := r[:i], r[i+1:]
			switch key {
			case txtKeyState:
				state = val
			case txtKeyCycle:
				cycle = val
			case txtKeyName:
				name = val
			}
			break
		}
	}
	return
}

func entryToService(entry *zeroconf.ServiceEntry) *Service {
	state, cycle, name := decodeTXT(entry.Text)

	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}

	return &Service{
		InstanceName: entry.Instance,
		Host:         entry.HostName,
		Port:         uint16(entry.Port),
		Addresses:    addrs,
		Name:         name,
		State:        state,
		Cycle:        cycle,
	}
}

var (
	_ Advertiser = (*MDNSAdvertiser)(nil)
	_ Browser    = (*MDNSBrowser)(nil)
)
