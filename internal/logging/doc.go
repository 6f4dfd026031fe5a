// Package logging builds the service's zerolog logger and adapts it to the
// printf-style snapshots.Logger used by the connection layer.
//
// Available implementations of snapshots.Logger:
//   - Logger: forwards to a zerolog.Logger (Verbose maps to debug level)
//   - NullLogger: discards all messages (useful for testing)
//
// All implementations are safe for concurrent use by multiple goroutines.
package logging
