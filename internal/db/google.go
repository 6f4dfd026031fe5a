package db

import (
	"context"
	"fmt"
	"net"

	"cloud.google.com/go/cloudsqlconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// CloudSQLConnector connects to Google Cloud SQL with IAM database
// authentication through the Cloud SQL Go connector.
//
// The dialer outlives Connect; call Close once the pool has been closed.
type CloudSQLConnector struct {
	config   *snapshots.ConnectionConfig
	instance string
	logger   snapshots.Logger
	dialer   *cloudsqlconn.Dialer
}

// NewCloudSQLConnector creates a connector for instance, given as
// project:region:instance.
func NewCloudSQLConnector(config *snapshots.ConnectionConfig, instance string, logger snapshots.Logger) *CloudSQLConnector {
	return &CloudSQLConnector{config: config, instance: instance, logger: logger}
}

func (c *CloudSQLConnector) Connect(ctx context.Context) (*pgxpool.Pool, error) {
	dialer, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Cloud SQL dialer: %w", snapshots.ErrConnectionFailed, err)
	}

	dsn := fmt.Sprintf("user=%s dbname=%s sslmode=disable", c.config.Username, c.config.Database)
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("failed to parse connection config: %w", err)
	}
	poolConfig.ConnConfig.DialFunc = func(ctx context.Context, _, _ string) (net.Conn, error) {
		return dialer.Dial(ctx, c.instance)
	}
	configurePool(poolConfig, c.logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		dialer.Close()
		return nil, fmt.Errorf("%w: %w", snapshots.ErrConnectionFailed, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		dialer.Close()
		return nil, fmt.Errorf("%w: cloud sql instance %s: %w", snapshots.ErrConnectionFailed, c.instance, err)
	}

	c.dialer = dialer
	return pool, nil
}

// Close releases the Cloud SQL dialer.
func (c *CloudSQLConnector) Close() error {
	if c.dialer == nil {
		return nil
	}
	err := c.dialer.Close()
	c.dialer = nil
	return err
}

func newGoogleConnector(cfg *snapshots.ConnectionConfig, logger snapshots.Logger) (snapshots.Connector, error) {
	if cfg.GoogleInstance == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires --google-instance (project:region:instance): %w", snapshots.ErrInvalidConfig)
	}
	if cfg.Username == "" {
		return nil, fmt.Errorf("Google Cloud SQL IAM auth requires a username (-U): %w", snapshots.ErrInvalidConfig)
	}
	return NewCloudSQLConnector(cfg, cfg.GoogleInstance, logger), nil
}
