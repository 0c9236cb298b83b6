package client

import (
	"context"
	"sync"
	"time"

	"github.com/pimalaya/timerd/pkg/connection"
	"github.com/pimalaya/timerd/pkg/protocol"
	"github.com/pimalaya/timerd/pkg/protolog"
	"github.com/pimalaya/timerd/pkg/transport"
	"github.com/pimalaya/timerd/pkg/version"
)

// ManagedClient is a Client that reconnects automatically with backoff when
// the underlying connection is lost, grounded on pkg/connection's
// Backoff-driven Manager.
type ManagedClient struct {
	connect transport.ClientConnect
	manager *connection.Manager

	mu   sync.Mutex
	conn transport.ClientConn
}

// NewManaged builds a ManagedClient that dials via connect on demand.
func NewManaged(connect transport.ClientConnect) *ManagedClient {
	mc := &ManagedClient{connect: connect}
	mc.manager = connection.NewManager(mc.dial)
	return mc
}

// Connect performs the initial connection and starts the background
// reconnect loop.
func (mc *ManagedClient) Connect(ctx context.Context) error {
	if err := mc.manager.Connect(ctx); err != nil {
		return err
	}
	mc.manager.StartReconnectLoop()
	return nil
}

// OnReconnecting registers a callback invoked before each reconnect attempt.
func (mc *ManagedClient) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	mc.manager.OnReconnecting(fn)
}

// SetProtocolLog attaches a protocol trace logger that records every
// connection state transition (connecting, connected, reconnecting,
// closed) as a protolog.StateChangeEvent tagged with connID.
func (mc *ManagedClient) SetProtocolLog(logger protolog.Logger, connID string) {
	mc.manager.SetLogger(logger, connID)
}

// Close stops the reconnect loop and closes the current connection.
func (mc *ManagedClient) Close() error {
	mc.manager.Close()
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if mc.conn == nil {
		return nil
	}
	return mc.conn.Close()
}

// Start issues the start operation.
func (mc *ManagedClient) Start(ctx context.Context) (*protocol.Snapshot, error) {
	return mc.call(ctx, protocol.StartRequest())
}

// Get issues the get (read-only) operation.
func (mc *ManagedClient) Get(ctx context.Context) (*protocol.Snapshot, error) {
	return mc.call(ctx, protocol.GetRequest())
}

// Pause issues the pause operation.
func (mc *ManagedClient) Pause(ctx context.Context) (*protocol.Snapshot, error) {
	return mc.call(ctx, protocol.PauseRequest())
}

// Resume issues the resume operation.
func (mc *ManagedClient) Resume(ctx context.Context) (*protocol.Snapshot, error) {
	return mc.call(ctx, protocol.ResumeRequest())
}

// Stop issues the stop operation.
func (mc *ManagedClient) Stop(ctx context.Context) (*protocol.Snapshot, error) {
	return mc.call(ctx, protocol.StopRequest())
}

// SetDuration issues the set_duration operation.
func (mc *ManagedClient) SetDuration(ctx context.Context, seconds uint32) (*protocol.Snapshot, error) {
	return mc.call(ctx, protocol.SetDurationRequest(seconds))
}

func (mc *ManagedClient) dial(ctx context.Context) error {
	conn, err := mc.connect.Connect(ctx)
	if err != nil {
		return err
	}
	mc.mu.Lock()
	mc.conn = conn
	mc.mu.Unlock()
	return nil
}

func (mc *ManagedClient) call(ctx context.Context, req *protocol.Request) (*protocol.Snapshot, error) {
	mc.mu.Lock()
	conn := mc.conn
	mc.mu.Unlock()

	if conn == nil || !mc.manager.IsConnected() {
		return nil, connection.ErrNotConnected
	}

	req.ProtocolVersion = version.Current

	if err := conn.WriteRequest(req); err != nil {
		mc.manager.NotifyConnectionLost()
		return nil, err
	}

	resp, err := conn.ReadResponse()
	if err != nil {
		mc.manager.NotifyConnectionLost()
		return nil, err
	}

	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Snapshot, nil
}
