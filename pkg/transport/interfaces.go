package transport

import (
	"context"
	"net"

	"github.com/pimalaya/timerd/pkg/protocol"
)

// RequestReader decodes one Request at a time from a byte stream.
type RequestReader interface {
	// ReadRequest reads and decodes the next request.
	ReadRequest() (*protocol.Request, error)
}

// RequestWriter encodes and flushes one Request at a time.
type RequestWriter interface {
	// WriteRequest encodes and writes a request.
	WriteRequest(req *protocol.Request) error
}

// ResponseReader decodes one Response at a time from a byte stream.
type ResponseReader interface {
	// ReadResponse reads and decodes the next response.
	ReadResponse() (*protocol.Response, error)
}

// ResponseWriter encodes and flushes one Response at a time.
type ResponseWriter interface {
	// WriteResponse encodes and writes a response.
	WriteResponse(resp *protocol.Response) error
}

// ServerConn is the duplex stream the server holds per accepted client: it
// reads requests and writes responses.
type ServerConn interface {
	RequestReader
	ResponseWriter

	// RemoteAddr returns the remote network address of the client.
	RemoteAddr() net.Addr

	// Close closes the connection.
	Close() error
}

// ClientConn is the duplex stream a client holds: it writes requests and
// reads responses.
type ClientConn interface {
	RequestWriter
	ResponseReader

	// LocalAddr returns the local network address.
	LocalAddr() net.Addr

	// RemoteAddr returns the remote network address.
	RemoteAddr() net.Addr

	// Close closes the connection.
	Close() error
}

// ServerBind is an accept loop yielding duplex connections. Implementations
// are transport-specific (TCP, in-process pipe, ...).
type ServerBind interface {
	// Accept blocks until a client connects or ctx is cancelled.
	Accept(ctx context.Context) (ServerConn, error)

	// Addr returns the bound listen address.
	Addr() net.Addr

	// Close stops accepting new connections.
	Close() error
}

// ClientConnect establishes a duplex connection to a server.
type ClientConnect interface {
	// Connect dials the server and returns a connection.
	Connect(ctx context.Context) (ClientConn, error)
}
