package logging

import "github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"

// NullLogger discards all log messages.
type NullLogger struct{}

var _ snapshots.Logger = (*NullLogger)(nil)

// NewNullLogger creates a new NullLogger.
func NewNullLogger() *NullLogger {
	return &NullLogger{}
}

func (l *NullLogger) Verbose(format string, args ...interface{}) {}

func (l *NullLogger) Info(format string, args ...interface{}) {}

func (l *NullLogger) Error(format string, args ...interface{}) {}
