// Package client provides a typed request/response API for talking to a
// timer server over a pkg/transport connection.
//
// Client wraps a single connection and exposes one method per wire
// operation (Start, Get, Pause, Resume, Stop, SetDuration). ManagedClient
// adds automatic reconnection with backoff on top, for long-lived
// connections to a server that may restart.
package client
