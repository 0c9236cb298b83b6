package transport

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/pimalaya/timerd/pkg/protocol"
)

// PipeBind is an in-process ServerBind backed by net.Pipe, used by
// integration tests that want a real duplex stream without allocating a
// TCP port. It is a second, independent implementation of the transport
// contracts, not a mock.
type PipeBind struct {
	maxMessageSize uint32
	addr           pipeAddr

	mu      sync.Mutex
	pending chan net.Conn
	closed  bool
	closeCh chan struct{}
}

type pipeAddr string

func (a pipeAddr) Network() string { return "pipe" }
func (a pipeAddr) String() string  { return string(a) }

// NewPipeBind creates an in-process bind identified by name.
func NewPipeBind(name string) *PipeBind {
	return &PipeBind{
		maxMessageSize: DefaultMaxMessageSize,
		addr:           pipeAddr(name),
		pending:        make(chan net.Conn),
		closeCh:        make(chan struct{}),
	}
}

// Dial connects a new in-process client to this bind, returning the
// client's end of the pipe. The server's end is delivered to the next
// Accept call.
func (b *PipeBind) Dial(ctx context.Context) (net.Conn, error) {
	clientSide, serverSide := net.Pipe()

	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		clientSide.Close()
		serverSide.Close()
		return nil, fmt.Errorf("pipe bind %s is closed", b.addr)
	}

	select {
	case b.pending <- serverSide:
		return clientSide, nil
	case <-ctx.Done():
		clientSide.Close()
		serverSide.Close()
		return nil, ctx.Err()
	case <-b.closeCh:
		clientSide.Close()
		serverSide.Close()
		return nil, fmt.Errorf("pipe bind %s is closed", b.addr)
	}
}

// Accept blocks until a client dials this bind or ctx is cancelled.
func (b *PipeBind) Accept(ctx context.Context) (ServerConn, error) {
	select {
	case conn, ok := <-b.pending:
		if !ok {
			return nil, fmt.Errorf("pipe bind %s is closed", b.addr)
		}
		connID := uuid.New().String()
		return &pipeServerConn{
			conn:   conn,
			framer: NewFramerWithMaxSize(conn, b.maxMessageSize),
			connID: connID,
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.closeCh:
		return nil, fmt.Errorf("pipe bind %s is closed", b.addr)
	}
}

// Addr returns the bind's logical address.
func (b *PipeBind) Addr() net.Addr {
	return b.addr
}

// Close stops accepting new connections.
func (b *PipeBind) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.closeCh)
	return nil
}

// pipeServerConn is the server-side duplex stream of an in-process connection.
type pipeServerConn struct {
	conn    net.Conn
	framer  *Framer
	connID  string
	writeMu sync.Mutex
}

func (c *pipeServerConn) ReadRequest() (*protocol.Request, error) {
	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRequest(data)
}

func (c *pipeServerConn) WriteResponse(resp *protocol.Response) error {
	data, err := protocol.EncodeResponse(resp)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteFrame(data)
}

func (c *pipeServerConn) RemoteAddr() net.Addr { return pipeAddr(c.connID) }
func (c *pipeServerConn) Close() error         { return c.conn.Close() }

// PipeConnect is the ClientConnect counterpart of PipeBind.
type PipeConnect struct {
	bind           *PipeBind
	maxMessageSize uint32
}

// NewPipeConnect returns a ClientConnect that dials bind in-process.
func NewPipeConnect(bind *PipeBind) *PipeConnect {
	return &PipeConnect{bind: bind, maxMessageSize: DefaultMaxMessageSize}
}

// Connect dials the paired PipeBind and returns a connection.
func (c *PipeConnect) Connect(ctx context.Context) (ClientConn, error) {
	conn, err := c.bind.Dial(ctx)
	if err != nil {
		return nil, err
	}
	return &pipeClientConn{
		conn:   conn,
		framer: NewFramerWithMaxSize(conn, c.maxMessageSize),
	}, nil
}

type pipeClientConn struct {
	conn    net.Conn
	framer  *Framer
	writeMu sync.Mutex
	readMu  sync.Mutex
}

func (c *pipeClientConn) WriteRequest(req *protocol.Request) error {
	data, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.framer.WriteFrame(data)
}

func (c *pipeClientConn) ReadResponse() (*protocol.Response, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()
	data, err := c.framer.ReadFrame()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(data)
}

func (c *pipeClientConn) LocalAddr() net.Addr  { return c.conn.LocalAddr() }
func (c *pipeClientConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }
func (c *pipeClientConn) Close() error         { return c.conn.Close() }

var (
	_ ServerBind    = (*PipeBind)(nil)
	_ ServerConn    = (*pipeServerConn)(nil)
	_ ClientConnect = (*PipeConnect)(nil)
	_ ClientConn    = (*pipeClientConn)(nil)
)
