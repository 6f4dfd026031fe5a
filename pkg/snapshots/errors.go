package snapshots

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common failure scenarios.
// These enable callers to distinguish error types using errors.Is().
var (
	// ErrBackingStore indicates the bulk snapshot query failed.
	ErrBackingStore = errors.New("backing store query failed")

	// ErrSigning indicates a raw snapshot path could not be turned into a signed URL.
	ErrSigning = errors.New("snapshot signing failed")

	// ErrCancelled indicates the owning request was torn down before its batch completed.
	ErrCancelled = errors.New("snapshot load cancelled")

	// ErrInvalidConfig indicates the provided configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedAuthMethod indicates the requested authentication method is not supported.
	ErrUnsupportedAuthMethod = errors.New("unsupported authentication method")

	// ErrConnectionFailed indicates database connection failed.
	ErrConnectionFailed = errors.New("connection failed")
)

// BatchError is delivered to every caller of a failed batch.
//
// Kind is one of ErrBackingStore, ErrSigning or ErrCancelled. Keys lists the
// distinct keys the batch was fetching, so a caller can tell that its own key
// was not necessarily the one at fault.
type BatchError struct {
	Kind error
	Keys []uint32
	Err  error
}

func (e *BatchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%v (batch of %d)", e.Kind, len(e.Keys))
	}
	return fmt.Sprintf("%v (batch of %d): %v", e.Kind, len(e.Keys), e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// usagePatterns are the messages cobra produces for command line misuse.
var usagePatterns = []string{
	"unknown flag",
	"unknown shorthand flag",
	"unknown command",
	"accepts ",
	"required flag",
	"invalid argument",
	"flag needs an argument",
}

// ExitCodeForError returns the appropriate exit code for an error.
// Returns ExitSuccess (0) for nil errors, semantic codes for known errors,
// and ExitGeneralError (1) for unclassified errors.
func ExitCodeForError(err error) int {
	if err == nil {
		return ExitSuccess
	}

	switch {
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrUnsupportedAuthMethod):
		return ExitConfigError
	case errors.Is(err, ErrConnectionFailed):
		return ExitConnectionError
	case errors.Is(err, ErrCancelled):
		return ExitInterrupted
	}

	errStr := err.Error()
	for _, pattern := range usagePatterns {
		if strings.Contains(errStr, pattern) {
			return ExitUsageError
		}
	}

	if strings.Contains(errStr, "failed to connect") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no such host") {
		return ExitConnectionError
	}

	return ExitGeneralError
}
