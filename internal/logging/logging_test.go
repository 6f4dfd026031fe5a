package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	z, err := New(&buf, "info", FormatJSON)
	require.NoError(t, err)

	z.Debug().Msg("hidden")
	z.Info().Int("keys", 3).Msg("batch loaded")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "info", lines[0]["level"])
	assert.Equal(t, "batch loaded", lines[0]["message"])
	assert.EqualValues(t, 3, lines[0]["keys"])
	assert.Contains(t, lines[0], "time")
}

func TestNew_ConsoleWithoutTerminalHasNoColour(t *testing.T) {
	var buf bytes.Buffer
	z, err := New(&buf, "debug", FormatConsole)
	require.NoError(t, err)

	z.Debug().Str("request_id", "abc").Msg("hello")

	out := buf.String()
	assert.Contains(t, out, "hello")
	assert.Contains(t, out, "request_id=abc")
	assert.NotContains(t, out, "\x1b[")
}

func TestNew_RejectsBadSettings(t *testing.T) {
	_, err := New(&bytes.Buffer{}, "loud", FormatJSON)
	assert.ErrorIs(t, err, snapshots.ErrInvalidConfig)

	_, err = New(&bytes.Buffer{}, "info", "xml")
	assert.ErrorIs(t, err, snapshots.ErrInvalidConfig)
}

func TestLogger_MapsLevels(t *testing.T) {
	var buf bytes.Buffer
	z, err := New(&buf, "debug", FormatJSON)
	require.NoError(t, err)

	l := NewLogger(z)
	l.Verbose("notice: %s", "x")
	l.Info("connected to %s", "db")
	l.Error("failed")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 3)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "notice: x", lines[0]["message"])
	assert.Equal(t, "info", lines[1]["level"])
	assert.Equal(t, "connected to db", lines[1]["message"])
	assert.Equal(t, "error", lines[2]["level"])
}

func TestNullLogger_DiscardsEverything(t *testing.T) {
	var l snapshots.Logger = NewNullLogger()

	assert.NotPanics(t, func() {
		l.Verbose("a %d", 1)
		l.Info("b")
		l.Error("c %v", nil)
	})
}
