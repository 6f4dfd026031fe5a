package retry

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// transientClasses are SQLSTATE classes that describe a server which is
// temporarily unable to serve: connection exceptions, insufficient resources
// and operator intervention.
var transientClasses = []string{"08", "53", "57"}

// transientCodes are individual SQLSTATE codes worth retrying.
var transientCodes = map[string]struct{}{
	"40001": {}, // serialization_failure
	"40P01": {}, // deadlock_detected
	"55P03": {}, // lock_not_available
}

// transientMessages catch failures that reach us as plain text.
var transientMessages = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no such host",
	"network is unreachable",
	"server closed the connection",
	"unexpected eof",
	"too many connections",
}

// PostgresClassifier recognises transient PostgreSQL and network failures.
type PostgresClassifier struct{}

var _ snapshots.ErrorClassifier = PostgresClassifier{}

// NewPostgresClassifier returns a classifier for PostgreSQL connections.
func NewPostgresClassifier() PostgresClassifier {
	return PostgresClassifier{}
}

// IsTransient reports whether err is worth another attempt.
func (PostgresClassifier) IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if _, ok := transientCodes[pgErr.Code]; ok {
			return true
		}
		for _, class := range transientClasses {
			if strings.HasPrefix(pgErr.Code, class) {
				return true
			}
		}
		return false
	}

	if pgconn.SafeToRetry(err) || pgconn.Timeout(err) {
		return true
	}

	if isTransientNetError(err) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range transientMessages {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func isTransientNetError(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
		return errors.Is(opErr.Err, syscall.ECONNREFUSED) ||
			errors.Is(opErr.Err, syscall.ECONNRESET) ||
			errors.Is(opErr.Err, syscall.ENETUNREACH) ||
			errors.Is(opErr.Err, syscall.EHOSTUNREACH)
	}
	return false
}
