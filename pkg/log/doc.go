// Package log provides the protocol trace of P2P2 devices.
//
// This package defines the Logger interface and Event types for capturing
// frames, state changes and notifications of a device. It is separate from
// operational logging (slog): the trace is a complete machine-readable
// record for debugging pairing and discovery exchanges.
//
// # Basic Usage
//
//	// For development: log to console via slog
//	cfg.ProtocolLogger = log.NewSlogAdapter(slog.Default())
//
//	// For analysis: write to binary file
//	cfg.ProtocolLogger, _ = log.NewFileLogger("/tmp/dev0.plog")
//
//	// Both: use MultiLogger
//	cfg.ProtocolLogger = log.NewMultiLogger(adapter, fileLogger)
//
// # Event Types
//
// Events are captured at several layers (medium, usd, pairing, group,
// control) and carry one payload:
//   - FrameEvent: an encoded frame sent or received
//   - StateChangeEvent: a session, pairing attempt or group changed state
//   - NotificationEvent: a notification raised to the consumer
//   - ErrorEventData: dropped input or a failed operation
//
// # File Format
//
// Trace files are a stream of CBOR events with the .plog extension. Open
// streams the events a Query selects; CollectAttempts folds them into one
// Attempt per pairing, which the p2p2-log pairings command prints.
package log
