package connection

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pimalaya/timerd/pkg/protolog"
)

// Errors a client talking to a timer server over this Manager can see.
// ErrNotConnected is the one a caller hits routinely: ManagedClient.call
// returns it whenever a request arrives between NotifyConnectionLost and
// the reconnect loop re-establishing a transport connection.
var (
	ErrConnectionClosed  = errors.New("connection closed")
	ErrReconnectDisabled = errors.New("reconnection disabled")
	ErrConnectTimeout    = errors.New("connection timeout")
	ErrAlreadyConnected  = errors.New("already connected")
	ErrNotConnected      = errors.New("not connected")
)

// State represents the connection state.
type State uint8

const (
	// StateDisconnected indicates no active connection.
	StateDisconnected State = iota

	// StateConnecting indicates a connection attempt is in progress.
	StateConnecting

	// StateConnected indicates an active connection.
	StateConnected

	// StateReconnecting indicates automatic reconnection is in progress.
	StateReconnecting

	// StateClosed indicates the connection manager has been closed.
	StateClosed
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnectFunc dials the timer server. It should return nil on success or
// an error on failure; ManagedClient.dial's implementation stashes the
// resulting transport.ClientConn for subsequent requests.
type ConnectFunc func(ctx context.Context) error

// Manager drives one client connection's lifecycle: the initial Connect,
// detecting loss via NotifyConnectionLost, and retrying with Backoff until
// the timer server is reachable again. ManagedClient is the only caller in
// this module, but Manager itself knows nothing about the wire protocol —
// it only calls the ConnectFunc it was built with.
type Manager struct {
	mu sync.RWMutex

	// Current state
	state State

	// Backoff calculator
	backoff *Backoff

	// Connection function
	connectFn ConnectFunc

	// Auto-reconnect enabled
	autoReconnect bool

	// Context for cancellation
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group for reconnection goroutine
	wg sync.WaitGroup

	// Channel to signal reconnection should start
	reconnectCh chan struct{}

	// Callbacks
	onStateChange  func(oldState, newState State)
	onConnected    func()
	onDisconnected func()
	onReconnecting func(attempt int, delay time.Duration)

	// protocol trace logging (optional, enabled by SetLogger)
	logger protolog.Logger
	connID string
}

// NewManager creates a Manager that dials via connectFn. Reconnection is
// enabled by default; call SetAutoReconnect(false) for a client that
// should surface a lost connection as an error instead of retrying.
func NewManager(connectFn ConnectFunc) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		state:         StateDisconnected,
		backoff:       NewBackoff(),
		connectFn:     connectFn,
		autoReconnect: true,
		ctx:           ctx,
		cancel:        cancel,
		reconnectCh:   make(chan struct{}, 1),
	}
}

// SetLogger attaches a protocol trace logger, tagging every logged
// transition with connID. Every state transition this Manager makes is
// logged as a protolog.StateChangeEvent on StateEntityConnection; pass nil
// to disable.
func (m *Manager) SetLogger(logger protolog.Logger, connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
	m.connID = connID
}

func (m *Manager) logTransition(oldState, newState State, reason string) {
	m.mu.RLock()
	logger, connID := m.logger, m.connID
	m.mu.RUnlock()

	if logger == nil {
		return
	}
	logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        protolog.LayerTransport,
		Category:     protolog.CategoryState,
		StateChange: &protolog.StateChangeEvent{
			Entity:   protolog.StateEntityConnection,
			OldState: oldState.String(),
			NewState: newState.String(),
			Reason:   reason,
		},
	})
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// IsConnected returns true if currently connected.
func (m *Manager) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state == StateConnected
}

// SetAutoReconnect enables or disables automatic reconnection.
func (m *Manager) SetAutoReconnect(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.autoReconnect = enabled
}

// Connect initiates a connection.
// Returns immediately if already connected.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateConnected {
		m.mu.Unlock()
		return ErrAlreadyConnected
	}
	if m.state == StateClosed {
		m.mu.Unlock()
		return ErrConnectionClosed
	}

	oldState := m.state
	m.state = StateConnecting
	m.mu.Unlock()

	m.logTransition(oldState, StateConnecting, "connect requested")
	if m.onStateChange != nil {
		m.onStateChange(oldState, StateConnecting)
	}

	// Attempt connection
	err := m.connectFn(ctx)

	m.mu.Lock()
	if err != nil {
		m.state = StateDisconnected
		m.mu.Unlock()
		m.logTransition(StateConnecting, StateDisconnected, err.Error())
		if m.onStateChange != nil {
			m.onStateChange(StateConnecting, StateDisconnected)
		}
		return err
	}

	m.state = StateConnected
	m.backoff.Reset()
	m.mu.Unlock()

	m.logTransition(StateConnecting, StateConnected, "")
	if m.onStateChange != nil {
		m.onStateChange(StateConnecting, StateConnected)
	}
	if m.onConnected != nil {
		m.onConnected()
	}

	return nil
}

// Disconnect closes the connection.
// If autoReconnect is enabled, reconnection will be attempted.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	autoReconnect := m.autoReconnect

	if autoReconnect {
		m.state = StateReconnecting
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	m.logTransition(oldState, m.state, "disconnect requested")
	if m.onStateChange != nil {
		m.onStateChange(oldState, m.state)
	}
	if m.onDisconnected != nil {
		m.onDisconnected()
	}

	if autoReconnect {
		m.triggerReconnect()
	}
}

// NotifyConnectionLost should be called when a connection loss is detected.
// This triggers automatic reconnection if enabled.
func (m *Manager) NotifyConnectionLost() {
	m.mu.Lock()
	if m.state != StateConnected {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	autoReconnect := m.autoReconnect

	if autoReconnect {
		m.state = StateReconnecting
	} else {
		m.state = StateDisconnected
	}
	m.mu.Unlock()

	m.logTransition(oldState, m.state, "connection lost")
	if m.onStateChange != nil {
		m.onStateChange(oldState, m.state)
	}
	if m.onDisconnected != nil {
		m.onDisconnected()
	}

	if autoReconnect {
		m.triggerReconnect()
	}
}

// StartReconnectLoop starts the background reconnection loop.
// Must be called once before reconnection will work.
func (m *Manager) StartReconnectLoop() {
	m.wg.Add(1)
	go m.reconnectLoop()
}

// Close shuts down the connection manager.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}

	oldState := m.state
	m.state = StateClosed
	m.mu.Unlock()

	m.logTransition(oldState, StateClosed, "")
	if m.onStateChange != nil {
		m.onStateChange(oldState, StateClosed)
	}

	m.cancel()
	m.wg.Wait()
}

// triggerReconnect signals that reconnection should be attempted.
func (m *Manager) triggerReconnect() {
	select {
	case m.reconnectCh <- struct{}{}:
	default:
		// Already pending
	}
}

// reconnectLoop runs in a goroutine and handles reconnection attempts.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-m.reconnectCh:
			m.attemptReconnect()
		}
	}
}

// attemptReconnect performs reconnection with backoff.
func (m *Manager) attemptReconnect() {
	for {
		m.mu.RLock()
		state := m.state
		m.mu.RUnlock()

		if state == StateClosed {
			return
		}
		if state == StateConnected {
			return
		}

		// Get next backoff delay
		delay := m.backoff.Next()
		attempts := m.backoff.Attempts()

		m.logReconnectAttempt(attempts, delay)
		if m.onReconnecting != nil {
			m.onReconnecting(attempts, delay)
		}

		// Wait for backoff delay
		select {
		case <-m.ctx.Done():
			return
		case <-time.After(delay):
		}

		// Attempt connection
		m.mu.Lock()
		if m.state == StateClosed || m.state == StateConnected {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(m.ctx, 30*time.Second)
		err := m.connectFn(ctx)
		cancel()

		if err == nil {
			// Success!
			m.mu.Lock()
			oldState := m.state
			m.state = StateConnected
			m.backoff.Reset()
			m.mu.Unlock()

			m.logTransition(oldState, StateConnected, "reconnected")
			if m.onStateChange != nil {
				m.onStateChange(oldState, StateConnected)
			}
			if m.onConnected != nil {
				m.onConnected()
			}
			return
		}

		// Failed - continue looping with next backoff
	}
}

func (m *Manager) logReconnectAttempt(attempt int, delay time.Duration) {
	m.mu.RLock()
	logger, connID := m.logger, m.connID
	m.mu.RUnlock()

	if logger == nil {
		return
	}
	logger.Log(protolog.Event{
		Timestamp:    time.Now(),
		ConnectionID: connID,
		Layer:        protolog.LayerTransport,
		Category:     protolog.CategoryError,
		Error: &protolog.ErrorEventData{
			Layer:   protolog.LayerTransport,
			Message: "reconnecting",
			Context: fmt.Sprintf("attempt=%d delay=%s", attempt, delay),
		},
	})
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(oldState, newState State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// OnConnected sets a callback for successful connection.
func (m *Manager) OnConnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = fn
}

// OnDisconnected sets a callback for disconnection.
func (m *Manager) OnDisconnected(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnected = fn
}

// OnReconnecting sets a callback for reconnection attempts.
func (m *Manager) OnReconnecting(fn func(attempt int, delay time.Duration)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReconnecting = fn
}

// BackoffAttempts returns the current number of reconnection attempts.
func (m *Manager) BackoffAttempts() int {
	return m.backoff.Attempts()
}
