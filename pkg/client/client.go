package client

import (
	"context"
	"errors"
	"sync"

	"github.com/pimalaya/timerd/pkg/protocol"
	"github.com/pimalaya/timerd/pkg/transport"
	"github.com/pimalaya/timerd/pkg/version"
)

// ErrClosed is returned by calls made after Close.
var ErrClosed = errors.New("client: connection closed")

// Client is a thin, connection-per-instance API: one call encodes one
// Request, flushes it, and reads exactly one Response. A Client does not
// own a timer; it owns a transport connection.
type Client struct {
	mu     sync.Mutex
	conn   transport.ClientConn
	closed bool
}

// New wraps an already-established connection.
func New(conn transport.ClientConn) *Client {
	return &Client{conn: conn}
}

// Dial establishes a new connection via connect and wraps it.
func Dial(ctx context.Context, connect transport.ClientConnect) (*Client, error) {
	conn, err := connect.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// Start issues the start operation.
func (c *Client) Start(ctx context.Context) (*protocol.Snapshot, error) {
	return c.call(ctx, protocol.StartRequest())
}

// Get issues the get (read-only) operation.
func (c *Client) Get(ctx context.Context) (*protocol.Snapshot, error) {
	return c.call(ctx, protocol.GetRequest())
}

// Pause issues the pause operation.
func (c *Client) Pause(ctx context.Context) (*protocol.Snapshot, error) {
	return c.call(ctx, protocol.PauseRequest())
}

// Resume issues the resume operation.
func (c *Client) Resume(ctx context.Context) (*protocol.Snapshot, error) {
	return c.call(ctx, protocol.ResumeRequest())
}

// Stop issues the stop operation.
func (c *Client) Stop(ctx context.Context) (*protocol.Snapshot, error) {
	return c.call(ctx, protocol.StopRequest())
}

// SetDuration issues the set_duration operation.
func (c *Client) SetDuration(ctx context.Context, seconds uint32) (*protocol.Snapshot, error) {
	return c.call(ctx, protocol.SetDurationRequest(seconds))
}

// Close closes the underlying connection. Further calls return ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, req *protocol.Request) (*protocol.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	req.ProtocolVersion = version.Current

	type result struct {
		resp *protocol.Response
		err  error
	}
	ch := make(chan result, 1)

	go func() {
		if err := c.conn.WriteRequest(req); err != nil {
			ch <- result{nil, err}
			return
		}
		resp, err := c.conn.ReadResponse()
		ch <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		c.conn.Close()
		c.closed = true
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}
		if r.resp.Error != nil {
			return nil, r.resp.Error
		}
		return r.resp.Snapshot, nil
	}
}
