package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pimalaya/timerd/pkg/protocol"
)

// TCPConnectConfig configures a TCP ClientConnect.
type TCPConnectConfig struct {
	// Address is the server address to dial (e.g., "127.0.0.1:7677").
	Address string

	// MaxMessageSize is the maximum frame payload size (default: 64KB).
	MaxMessageSize uint32

	// DialTimeout bounds the connection attempt (default: 10s).
	DialTimeout time.Duration
}

// TCPConnect is the reference TCP implementation of ClientConnect.
type TCPConnect struct {
	config TCPConnectConfig
}

// NewTCPConnect returns a ClientConnect that dials address over plain TCP.
func NewTCPConnect(config TCPConnectConfig) *TCPConnect {
	if config.MaxMessageSize == 0 {
		config.MaxMessageSize = DefaultMaxMessageSize
	}
	if config.DialTimeout == 0 {
		config.DialTimeout = 10 * time.Second
	}
	return &TCPConnect{config: config}
}

// Connect dials the server and returns a connection.
func (c *TCPConnect) Connect(ctx context.Context) (ClientConn, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
		defer cancel()
	}

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", c.config.Address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", c.config.Address, err)
	}

	return &tcpClientConn{
		conn:   conn,
		framer: NewFramerWithMaxSize(conn, c.config.MaxMessageSize),
	}, nil
}

// tcpClientConn is the client-side duplex stream of a TCP connection.
type tcpClientConn struct {
	conn   net.Conn
	framer *Framer

	closeOnce sync.Once
	writeMu   sync.Mutex
	readMu    sync.Mutex
}

// WriteRequest encodes and writes a request frame.
func (c *tcpClientConn) WriteRequest(req *protocol.Request) error {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteFrame(data)
}

// ReadResponse reads and decodes the next response frame.
func (c *tcpClientConn) ReadResponse() (*protocol.Response, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(data)
}

// LocalAddr returns the local network address.
func (c *tcpClientConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// RemoteAddr returns the remote network address.
func (c *tcpClientConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// Close closes the underlying connection.
func (c *tcpClientConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.conn.Close()
	})
	return err
}

var (
	_ ClientConnect = (*TCPConnect)(nil)
	_ ClientConn    = (*tcpClientConn)(nil)
)
