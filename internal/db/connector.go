// Package db opens the PostgreSQL pool the snapshot store reads from.
//
// Connectors cover plain credentials, AWS RDS IAM tokens, Azure Entra ID
// tokens and the Google Cloud SQL connector. Every connector retries
// transient failures while the pool is being established and verifies the
// pool with a ping before returning it.
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtal-snapshots/crystal-snapshots/internal/logging"
	"github.com/xtal-snapshots/crystal-snapshots/internal/retry"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// Pool sizing. A request resolves all of its snapshot fields with one query
// per batch, so a modest pool serves many concurrent requests.
const (
	DefaultMaxConns        = 10
	DefaultMinConns        = 1
	DefaultMaxConnIdleTime = 5 * time.Minute
)

// configurePool applies pool sizing and routes server notices to logger.
func configurePool(poolConfig *pgxpool.Config, logger snapshots.Logger) {
	poolConfig.MaxConns = DefaultMaxConns
	poolConfig.MinConns = DefaultMinConns
	poolConfig.MaxConnIdleTime = DefaultMaxConnIdleTime
	poolConfig.ConnConfig.OnNotice = func(_ *pgconn.PgConn, notice *pgconn.Notice) {
		logger.Verbose("postgres %s: %s", strings.ToLower(notice.Severity), notice.Message)
	}
}

// newRetryExecutor returns the executor shared by the connectors, reporting
// every retry through logger.
func newRetryExecutor(logger snapshots.Logger) *retry.Executor {
	strategy := retry.NewBackoff(snapshots.DefaultRetryMaxAttempts,
		retry.WithInitialDelay(snapshots.DefaultRetryInitialDelay),
		retry.WithMaxDelay(snapshots.DefaultRetryMaxDelay),
	)
	return retry.NewExecutor(retry.NewPostgresClassifier(), strategy).
		WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Info("database connection attempt failed, retry %d in %v: %v", attempt, delay.Round(time.Millisecond), err)
		})
}

// openPool parses connStr, opens a pool and pings it.
func openPool(ctx context.Context, connStr string, cfg *snapshots.ConnectionConfig, logger snapshots.Logger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	configurePool(poolConfig, logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, wrapConnectionError(err, cfg.Host, cfg.Port, cfg.Database)
	}
	return pool, nil
}

// StandardConnector connects with the username and password in its config.
type StandardConnector struct {
	config   *snapshots.ConnectionConfig
	logger   snapshots.Logger
	executor *retry.Executor
}

// NewStandardConnector creates a connector for password authentication.
func NewStandardConnector(config *snapshots.ConnectionConfig, logger snapshots.Logger) *StandardConnector {
	return &StandardConnector{
		config:   config,
		logger:   logger,
		executor: newRetryExecutor(logger),
	}
}

// Connect opens and verifies the pool, retrying transient failures.
func (c *StandardConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	connStr := BuildConnectionString(c.config)

	var pool *pgxpool.Pool
	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		var err error
		pool, err = openPool(ctx, connStr, c.config, c.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", snapshots.ErrConnectionFailed, err)
	}
	return pool, nil
}

// NewConnector returns the connector matching config.AuthMethod.
// A nil logger discards pool notices and retry messages.
func NewConnector(config *snapshots.ConnectionConfig, logger snapshots.Logger) (snapshots.Connector, error) {
	if logger == nil {
		logger = logging.NewNullLogger()
	}

	switch config.AuthMethod {
	case snapshots.AuthMethodStandard:
		return NewStandardConnector(config, logger), nil
	case snapshots.AuthMethodAWSIAM:
		return newAWSConnector(config, logger)
	case snapshots.AuthMethodGoogleIAM:
		return newGoogleConnector(config, logger)
	case snapshots.AuthMethodAzureEntraID:
		return newAzureConnector(config, logger)
	default:
		return nil, fmt.Errorf("unsupported auth method %v: %w", config.AuthMethod, snapshots.ErrUnsupportedAuthMethod)
	}
}

// wrapConnectionError turns common pgx connection failures into a message
// that says what to check.
func wrapConnectionError(err error, host string, port int, database string) error {
	msg := strings.ToLower(err.Error())
	addr := fmt.Sprintf("%s:%d", host, port)

	switch {
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "actively refused"):
		return fmt.Errorf("connection refused to %s, check that PostgreSQL is running and the host and port are right: %w", addr, err)
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "no host"):
		return fmt.Errorf("cannot resolve host %q: %w", host, err)
	case strings.Contains(msg, "password authentication failed"):
		return fmt.Errorf("authentication failed for database %q, check the username and $PGPASSWORD or the cloud credentials: %w", database, err)
	case strings.Contains(msg, "does not exist"):
		return fmt.Errorf("database %q does not exist: %w", database, err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return fmt.Errorf("connection timed out to %s: %w", addr, err)
	case strings.Contains(msg, "ssl") || strings.Contains(msg, "tls"):
		return fmt.Errorf("SSL/TLS error connecting to %s, check --sslmode: %w", addr, err)
	case strings.Contains(msg, "too many connections"):
		return fmt.Errorf("too many connections to database %q: %w", database, err)
	default:
		return fmt.Errorf("failed to connect to database: %w", err)
	}
}
