// Package transport defines the duplex connection contracts used by the
// server and client, and provides two implementations: a reference TCP
// transport and an in-process transport for tests.
//
// # Protocol Stack
//
//	┌────────────────────────────────┐
//	│      JSON requests/responses   │
//	├────────────────────────────────┤
//	│   Length-Prefix Framing (4B)   │
//	├────────────────────────────────┤
//	│         TCP or net.Pipe        │
//	└────────────────────────────────┘
//
// # Contracts
//
// ServerBind yields duplex connections that can read requests and write
// responses (ServerConn). ClientConnect establishes a duplex connection
// that can write requests and read responses (ClientConn). Both the
// reference TCP transport and the in-process pipe transport implement the
// same contracts, so the server and client are transport-agnostic.
package transport
