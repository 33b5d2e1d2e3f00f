// Package log provides structured event capture for advertisement ingestion.
//
// This package defines the Logger interface and Event types for recording
// what the ingestion layer saw and did: advertisements received, coordinator
// state changes, parse failures and recoveries. It is separate from
// operational logging (slog) - event capture provides a complete
// machine-readable trace for debugging flaky devices after the fact.
//
// # Basic Usage
//
// Applications configure capture by providing a Logger implementation:
//
//	// For development: log to console via slog
//	logger := log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	logger, err := log.NewFileLogger("/var/log/blecore/ingest.blog")
//
//	// Both: use MultiLogger
//	logger := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # Event Types
//
// Every event carries the device address it concerns. Three categories:
//   - Advertisement: a raw packet was received (AdvEvent)
//   - State: a coordinator or scanner state change (StateChangeEvent)
//   - Error: a parse failure, caller contract violation, or listener
//     failure (ErrorEventData)
//
// # File Format
//
// Log files use CBOR encoding with .blog extension. The adv-log CLI tool
// provides viewing, filtering, and export capabilities.
package log
