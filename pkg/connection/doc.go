// Package connection provides connection lifecycle management for clients
// talking to a timer server.
//
// This package handles:
//   - Exponential backoff for reconnection attempts
//   - Jitter to prevent thundering herd
//   - Connection state tracking
//   - Automatic reconnection on connection loss
//
// # Reconnection Strategy
//
// When a connection is lost, the client uses exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Continue at 60s until successful
//  5. Reset to 1s on successful reconnection
//
// # Jitter
//
// To prevent thundering herd when multiple clients reconnect:
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
//
// # Success Criteria
//
// A reconnection is successful when the transport-level connection to the
// server is established (see pkg/transport.ClientConnect). Request-level
// failures after that point do not reset backoff.
//
// # Telemetry
//
// Manager.SetLogger attaches a pkg/protolog.Logger: every state transition
// is recorded as a StateChangeEvent on StateEntityConnection, and every
// backoff-gated retry inside attemptReconnect is recorded as an error-layer
// event carrying the attempt number and delay. ManagedClient.SetProtocolLog
// is the entry point a caller (e.g. cmd/timerd or an interactive timerctl
// session) uses to enable it.
package connection
