package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtal-snapshots/crystal-snapshots/internal/retry"
	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// TokenProvider issues short-lived tokens that PostgreSQL accepts as a
// password.
type TokenProvider interface {
	GetToken(ctx context.Context) (token string, expiresOn time.Time, err error)

	// String describes the provider for logs. It must not include secrets.
	String() string
}

// tokenExpiryWarning is the remaining lifetime below which a freshly issued
// token is logged as about to expire.
const tokenExpiryWarning = 5 * time.Minute

// TokenConnector connects with a token from its provider in place of a
// password. A new token is requested for every connection attempt.
type TokenConnector struct {
	config   *snapshots.ConnectionConfig
	provider TokenProvider
	logger   snapshots.Logger
	executor *retry.Executor
}

// NewTokenConnector creates a connector authenticating through provider.
func NewTokenConnector(config *snapshots.ConnectionConfig, provider TokenProvider, logger snapshots.Logger) *TokenConnector {
	return &TokenConnector{
		config:   config,
		provider: provider,
		logger:   logger,
		executor: newRetryExecutor(logger),
	}
}

// Connect opens and verifies the pool, retrying transient failures.
func (c *TokenConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	var pool *pgxpool.Pool

	err := c.executor.Execute(ctx, func(ctx context.Context) error {
		token, expiresOn, err := c.provider.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to acquire token from %s: %w", c.provider, err)
		}
		if left := time.Until(expiresOn); left < tokenExpiryWarning {
			c.logger.Info("token from %s expires in %v", c.provider, left.Round(time.Second))
		}

		withToken := *c.config
		withToken.Password = token

		pool, err = openPool(ctx, BuildConnectionString(&withToken), c.config, c.logger)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", snapshots.ErrConnectionFailed, err)
	}
	return pool, nil
}
