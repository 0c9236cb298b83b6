package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pimalaya/timerd/pkg/clock"
	"github.com/pimalaya/timerd/pkg/hook"
	"github.com/pimalaya/timerd/pkg/protocol"
	"github.com/pimalaya/timerd/pkg/protolog"
	"github.com/pimalaya/timerd/pkg/timer"
	"github.com/pimalaya/timerd/pkg/transport"
)

// Server owns the one Timer a daemon exposes, runs its tick loop, and
// dispatches requests arriving on any bound transport. It follows the
// original's ThreadSafeTimer shape: the Machine already guards its own
// state, so Server adds no lock of its own — it only fans in connections
// and the tick cadence.
type Server struct {
	machine *timer.Machine
	clock   clock.Clock

	tickInterval time.Duration
	binders      []transport.ServerBind

	protoLog protolog.Logger
	opLog    *slog.Logger

	shutdownOnFatalHook bool

	cancel context.CancelFunc

	connsMu sync.Mutex
	conns   map[transport.ServerConn]struct{}
}

// Machine exposes the underlying timer, mainly for embedding callers that
// need to query it outside the wire protocol (e.g. a discovery TXT record
// reporting the current state).
func (s *Server) Machine() *timer.Machine { return s.machine }

// Run accepts connections on every bound transport and advances the tick
// loop until ctx is cancelled, a fatal hook error requests shutdown (if
// ShutdownOnFatalHook was set), or every binder's accept loop has drained on
// its own (e.g. every listener was closed out-of-band). Once Run returns no
// tick task is running and no hook is mid-execution: every goroutine Run
// starts is joined via WaitGroup before Run returns, and every connection
// accepted during the run has been force-closed so no handleConn goroutine
// is left blocked in a read.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	defer cancel()

	s.connsMu.Lock()
	s.conns = make(map[transport.ServerConn]struct{})
	s.connsMu.Unlock()

	var wg sync.WaitGroup
	var bindersWG sync.WaitGroup

	for _, bind := range s.binders {
		wg.Add(1)
		bindersWG.Add(1)
		bind := bind
		go func() {
			defer bindersWG.Done()
			s.acceptLoop(runCtx, bind, &wg)
		}()
	}

	wg.Add(1)
	go s.tickLoop(runCtx, &wg)

	if len(s.binders) > 0 {
		go func() {
			bindersWG.Wait()
			cancel()
		}()
	}

	<-runCtx.Done()

	for _, bind := range s.binders {
		_ = bind.Close()
	}
	s.closeConns()

	wg.Wait()
	return nil
}

// Shutdown requests that a running Run return. In-flight handlers are not
// given a grace period: Run force-closes every accepted connection as part
// of its own shutdown sequence, which unblocks any handleConn stuck in
// ReadRequest waiting on a client that never sends (or stops sending)
// requests.
func (s *Server) Shutdown() {
	if s.cancel != nil {
		s.cancel()
	}
}

// registerConn tracks conn so Run's shutdown sequence can force-close it.
func (s *Server) registerConn(conn transport.ServerConn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	if s.conns != nil {
		s.conns[conn] = struct{}{}
	}
}

// unregisterConn drops conn from the registry once handleConn has returned
// (and already closed it itself).
func (s *Server) unregisterConn(conn transport.ServerConn) {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	delete(s.conns, conn)
}

// closeConns force-closes every connection still registered, unblocking any
// handleConn goroutine idle in ReadRequest so acceptLoop's connWG.Wait can
// return.
func (s *Server) closeConns() {
	s.connsMu.Lock()
	conns := make([]transport.ServerConn, 0, len(s.conns))
	for conn := range s.conns {
		conns = append(conns, conn)
	}
	s.connsMu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (s *Server) acceptLoop(ctx context.Context, bind transport.ServerBind, wg *sync.WaitGroup) {
	defer wg.Done()

	var connWG sync.WaitGroup
	defer connWG.Wait()

	for {
		conn, err := bind.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.opLog.Error("accept failed", "error", err)
			return
		}

		s.registerConn(conn)

		connWG.Add(1)
		go func() {
			defer connWG.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn processes requests on one connection in arrival order: a
// response is written before the next request on the same connection is
// read. It returns on decode/transport failure, or when Run's shutdown
// sequence force-closes conn out from under a blocked ReadRequest (the
// ctx.Err() check at the top of the loop only catches cancellation between
// requests; closeConns is what unblocks a connection idle inside the read
// itself).
func (s *Server) handleConn(ctx context.Context, conn transport.ServerConn) {
	defer s.unregisterConn(conn)
	defer conn.Close()

	for {
		if ctx.Err() != nil {
			return
		}

		req, err := conn.ReadRequest()
		if err != nil {
			if kind := transport.ClassifyFrameError(err); kind != "" && kind != protocol.ErrorKindEndOfStream {
				_ = conn.WriteResponse(protocol.ErrResponse(kind, err.Error()))
			}
			return
		}

		started := s.clock.Now()
		resp := s.dispatch(req)
		s.logMessage(req, resp, s.clock.Now().Sub(started))

		if err := conn.WriteResponse(resp); err != nil {
			return
		}
	}
}

// dispatch maps one decoded Request onto the corresponding Machine
// operation and converts the result to a wire
// Response.
func (s *Server) dispatch(req *protocol.Request) *protocol.Response {
	if verr := req.CheckVersion(); verr != nil {
		return &protocol.Response{Error: verr}
	}

	if err := req.Validate(); err != nil {
		var perr *protocol.Error
		if errors.As(err, &perr) {
			return &protocol.Response{Error: perr}
		}
		return protocol.ErrResponse(protocol.ErrorKindDecode, err.Error())
	}

	var (
		snap timer.Snapshot
		err  error
	)
	switch req.Kind {
	case protocol.KindStart:
		snap, err = s.machine.Start()
	case protocol.KindGet:
		snap, err = s.machine.Get()
	case protocol.KindPause:
		snap, err = s.machine.Pause()
	case protocol.KindResume:
		snap, err = s.machine.Resume()
	case protocol.KindStop:
		snap, err = s.machine.Stop()
	case protocol.KindSetDuration:
		snap, err = s.machine.SetDuration(*req.Seconds)
	default:
		return protocol.ErrResponse(protocol.ErrorKindDecode, "unknown request kind: "+string(req.Kind))
	}

	if err != nil {
		return protocol.ErrResponse(classifyTimerError(err), err.Error())
	}
	return protocol.OkResponse(protocol.FromTimerSnapshot(snap))
}

func classifyTimerError(err error) protocol.ErrorKind {
	switch {
	case errors.Is(err, timer.ErrReentrancy):
		return protocol.ErrorKindReentrancy
	case errors.Is(err, timer.ErrInvalidDuration):
		return protocol.ErrorKindDecode
	default:
		return protocol.ErrorKindState
	}
}

// tickLoop wakes on tickInterval and advances the timer. It uses the
// server's Clock so tests can drive it deterministically with clock.Fake
// instead of depending on wall-clock sleeps.
func (s *Server) tickLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	t := s.clock.NewTimer(s.tickInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C():
			if err := s.machine.Tick(now); err != nil {
				s.opLog.Warn("tick failed", "error", err)
			}
			t.Reset(s.tickInterval)
		}
	}
}

// onHookError is passed to timer.New as the Machine's OnHookError
// callback. It runs synchronously while the Machine's lock is held, so it
// must not call back into the Machine (Shutdown only cancels a context).
func (s *Server) onHookError(event hook.Event, herr *hook.Error) {
	s.opLog.Error("hook failed", "event", event.String(), "severity", fatalSeverityString(herr), "error", herr.Err)
	if herr.Severity == hook.Fatal && s.shutdownOnFatalHook {
		s.Shutdown()
	}
}

func fatalSeverityString(herr *hook.Error) string {
	if herr.Severity == hook.Fatal {
		return "fatal"
	}
	return "recoverable"
}

func (s *Server) logMessage(req *protocol.Request, resp *protocol.Response, elapsed time.Duration) {
	ev := protolog.Event{
		Timestamp: s.clock.Now(),
		Layer:     protolog.LayerProtocol,
		Category:  protolog.CategoryMessage,
		Message: &protolog.MessageEvent{
			RequestKind:    &req.Kind,
			ResponseOK:     resp.Error == nil,
			ProcessingTime: &elapsed,
		},
	}
	if resp.Error != nil {
		ev.Message.ResponseError = &resp.Error.Kind
	}
	s.protoLog.Log(ev)
}
