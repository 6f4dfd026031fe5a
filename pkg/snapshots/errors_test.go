package snapshots_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

func TestExitCodeForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil error", nil, snapshots.ExitSuccess},
		{"unknown flag", errors.New("unknown flag --foo"), snapshots.ExitUsageError},
		{"unknown shorthand flag", errors.New("unknown shorthand flag: 'x'"), snapshots.ExitUsageError},
		{"accepts args", errors.New("accepts 0 arg(s), received 1"), snapshots.ExitUsageError},
		{"invalid argument", errors.New("invalid argument \"abc\" for \"--port\""), snapshots.ExitUsageError},
		{"general error", errors.New("something went wrong"), snapshots.ExitGeneralError},
		{"invalid config", fmt.Errorf("bucket is required: %w", snapshots.ErrInvalidConfig), snapshots.ExitConfigError},
		{"unsupported auth", snapshots.ErrUnsupportedAuthMethod, snapshots.ExitConfigError},
		{"connection failed", snapshots.ErrConnectionFailed, snapshots.ExitConnectionError},
		{"connection refused text", errors.New("dial tcp: connection refused"), snapshots.ExitConnectionError},
		{"cancelled", snapshots.ErrCancelled, snapshots.ExitInterrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, snapshots.ExitCodeForError(tt.err))
		})
	}
}

func TestBatchError_MatchesKindAndCause(t *testing.T) {
	err := error(&snapshots.BatchError{
		Kind: snapshots.ErrBackingStore,
		Keys: []uint32{1, 2},
		Err:  context.DeadlineExceeded,
	})

	assert.True(t, errors.Is(err, snapshots.ErrBackingStore))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, snapshots.ErrSigning))

	var batchErr *snapshots.BatchError
	if assert.True(t, errors.As(err, &batchErr)) {
		assert.Equal(t, []uint32{1, 2}, batchErr.Keys)
	}
	assert.Contains(t, err.Error(), "batch of 2")
}

func TestBatchError_WithoutCause(t *testing.T) {
	err := &snapshots.BatchError{Kind: snapshots.ErrCancelled}
	assert.True(t, errors.Is(err, snapshots.ErrCancelled))
	assert.Equal(t, "snapshot load cancelled (batch of 0)", err.Error())
}
