// Package protocol defines the wire-level Request/Response pair exchanged
// by a timer server and its clients. The length-prefixed framing they are
// carried in is implemented by package transport.
//
// Each direction of a connection carries a sequence of frames:
//
//	frame   = length:u32-be || payload:bytes[length]
//	payload = UTF-8 text encoding a single Request or Response value
//
// length is the byte count of payload; 0 < length <= MaxPayloadSize. Larger
// payloads are rejected by the framing layer (transport.ErrMessageTooLarge,
// reported on the wire as ErrorKindFrameTooLarge). The reference text format is
// JSON (encoding/json) — see this repository's design notes for why no
// third-party JSON codec was wired in here instead.
package protocol
