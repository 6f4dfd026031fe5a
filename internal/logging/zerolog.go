package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// Output formats accepted by New.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a zerolog logger writing to w at level in format.
// Console output is coloured only when w is a terminal.
func New(w io.Writer, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level %q: %w", level, snapshots.ErrInvalidConfig)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	switch format {
	case FormatJSON:
	case FormatConsole, "":
		w = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !isTerminal(w),
			TimeFormat: time.RFC3339,
		}
	default:
		return zerolog.Nop(), fmt.Errorf("log format %q: %w", format, snapshots.ErrInvalidConfig)
	}

	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Logger adapts a zerolog.Logger to snapshots.Logger.
type Logger struct {
	z zerolog.Logger
}

var _ snapshots.Logger = (*Logger)(nil)

// NewLogger wraps z.
func NewLogger(z zerolog.Logger) *Logger {
	return &Logger{z: z}
}

// Verbose logs at debug level.
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.z.Debug().Msgf(format, args...)
}

func (l *Logger) Info(format string, args ...interface{}) {
	l.z.Info().Msgf(format, args...)
}

func (l *Logger) Error(format string, args ...interface{}) {
	l.z.Error().Msgf(format, args...)
}
