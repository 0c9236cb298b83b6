// Package protolog provides structured protocol logging for the timer
// wire protocol.
//
// It defines the Logger interface and Event types for capturing protocol
// level events at multiple layers (transport, protocol, timer). It is
// separate from operational logging (slog): protocol capture provides a
// complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := protolog.NewSlogAdapter(slog.Default())
//
//	// For production: write to a binary trace file
//	logger, _ := protolog.NewFileLogger("/var/log/timerd/server.plog")
//
//	// Both: use MultiLogger
//	fileLogger, _ := protolog.NewFileLogger("/var/log/timerd/server.plog")
//	logger := protolog.NewMultiLogger(
//	    protolog.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Transport: raw frame bytes (FrameEvent)
//   - Protocol: decoded requests and responses (MessageEvent)
//   - Timer: state changes (StateChangeEvent)
//
// Errors have a dedicated event type.
//
// # File Format
//
// Log files use CBOR encoding with integer-keyed fields for compactness.
// Reader provides filtered iteration over a recorded trace.
package protolog
