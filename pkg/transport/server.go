package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pimalaya/timerd/pkg/protocol"
	"github.com/pimalaya/timerd/pkg/protolog"
)

// DefaultPort is the default TCP port for the reference transport.
const DefaultPort = 7677

// ErrConnectionClosed is returned by operations on a connection that has
// already been closed.
var ErrConnectionClosed = fmt.Errorf("connection closed")

// TCPBindConfig configures a TCP ServerBind.
type TCPBindConfig struct {
	// Address to listen on (e.g., ":7677" or "127.0.0.1:7677").
	Address string

	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// Logger for protocol tracing (optional).
	Logger protolog.Logger
}

// TCPBind is the reference TCP implementation of ServerBind: plain TCP,
// length-prefixed framing, no transport security.
type TCPBind struct {
	listener       net.Listener
	maxMessageSize uint32
	logger         protolog.Logger
}

// ListenTCP opens a TCP listener and returns a ServerBind over it.
func ListenTCP(config TCPBindConfig) (*TCPBind, error) {
	if config.Address == "" {
		config.Address = fmt.Sprintf(":%d", DefaultPort)
	}
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}

	listener, err := net.Listen("tcp", config.Address)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	return &TCPBind{
		listener:       listener,
		maxMessageSize: config.MaxMessageSize,
		logger:         config.Logger,
	}, nil
}

// Accept blocks until a client connects or ctx is cancelled.
func (b *TCPBind) Accept(ctx context.Context) (ServerConn, error) {
	type result struct {
		conn net.Conn
		err  error
	}

	ch := make(chan result, 1)
	go func() {
		conn, err := b.listener.Accept()
		ch <- result{conn, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.err != nil {
			return nil, r.err
		}

		connID := uuid.New().String()
		framer := NewFramerWithMaxSize(r.conn, b.maxMessageSize)
		if b.logger != nil {
			framer.SetLogger(b.logger, connID)
		}

		if b.logger != nil {
			b.logger.Log(protolog.Event{
				Timestamp:    time.Now(),
				ConnectionID: connID,
				Layer:        protolog.LayerTransport,
				Category:     protolog.CategoryState,
				RemoteAddr:   r.conn.RemoteAddr().String(),
				StateChange: &protolog.StateChangeEvent{
					Entity:   protolog.StateEntityConnection,
					NewState: "connected",
				},
			})
		}

		return &tcpServerConn{conn: r.conn, framer: framer, connID: connID, logger: b.logger}, nil
	}
}

// Addr returns the bound listen address.
func (b *TCPBind) Addr() net.Addr {
	return b.listener.Addr()
}

// Close stops accepting new connections.
func (b *TCPBind) Close() error {
	return b.listener.Close()
}

// tcpServerConn is the server-side duplex stream of a TCP connection.
type tcpServerConn struct {
	conn    net.Conn
	framer  *Framer
	connID  string
	logger  protolog.Logger
	writeMu sync.Mutex
}

// ReadRequest reads and decodes the next request frame.
func (c *tcpServerConn) ReadRequest() (*protocol.Request, error) {
	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRequest(data)
}

// WriteResponse encodes and writes a response frame.
func (c *tcpServerConn) WriteResponse(resp *protocol.Response) error {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteFrame(data)
}

// RemoteAddr returns the remote network address of the client.
func (c *tcpServerConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *tcpServerConn) Close() error {
	if c.logger != nil {
		c.logger.Log(protolog.Event{
			Timestamp:    time.Now(),
			ConnectionID: c.connID,
			Layer:        protolog.LayerTransport,
			Category:     protolog.CategoryState,
			RemoteAddr:   c.conn.RemoteAddr().String(),
			StateChange: &protolog.StateChangeEvent{
				Entity:   protolog.StateEntityConnection,
				OldState: "connected",
				NewState: "disconnected",
			},
		})
	}
	return c.conn.Close()
}

var (
	_ ServerBind = (*TCPBind)(nil)
	_ ServerConn = (*tcpServerConn)(nil)
)
