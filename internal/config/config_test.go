package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_AllFields(t *testing.T) {
	path := writeConfig(t, `connection:
  host: ispyb.example.org
  port: 5433
  username: reader
  database: ispyb
  sslmode: require
  auth_method: aws-iam
  aws_region: eu-west-2

s3:
  bucket: crystal-snapshots
  region: eu-west-2
  endpoint: http://minio:9000
  path_style: true
  verify_objects: true

server:
  listen: 127.0.0.1:8080
  shutdown_timeout: 5s
  max_parallelism: 8

loader:
  batch_wait: 2ms
  max_batch: 500
  sign_concurrency: 4

log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ispyb.example.org", cfg.Connection.Host)
	assert.Equal(t, 5433, cfg.Connection.Port)
	assert.Equal(t, "reader", cfg.Connection.Username)
	assert.Equal(t, "ispyb", cfg.Connection.Database)
	assert.Equal(t, "require", cfg.Connection.SSLMode)
	assert.Equal(t, "aws-iam", cfg.Connection.AuthMethod)
	assert.Equal(t, "eu-west-2", cfg.Connection.AWSRegion)

	assert.Equal(t, "crystal-snapshots", cfg.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.True(t, cfg.S3.PathStyle)
	assert.True(t, cfg.S3.VerifyObjects)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Listen)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 8, cfg.Server.MaxParallelism)

	assert.Equal(t, snapshots.LoaderOptions{
		BatchWait:       2 * time.Millisecond,
		MaxBatch:        500,
		SignConcurrency: 4,
	}, cfg.LoaderOptions())

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_ExplicitZeroBatchWait(t *testing.T) {
	path := writeConfig(t, "s3:\n  bucket: snaps\nloader:\n  batch_wait: 0s\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), cfg.Loader.BatchWait)
}

func TestLoad_MinimalYAMLKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "s3:\n  bucket: snaps\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, snapshots.DefaultListenAddr, cfg.Server.Listen)
	assert.Equal(t, snapshots.DefaultShutdownTimeout, cfg.Server.ShutdownTimeout)
	assert.Equal(t, snapshots.DefaultMaxParallelism, cfg.Server.MaxParallelism)
	assert.Equal(t, snapshots.DefaultSignConcurrency, cfg.Loader.SignConcurrency)
	assert.Equal(t, snapshots.DefaultBatchWait, cfg.Loader.BatchWait)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "server: [unclosed\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeConfig(t, "loader:\n  batch_wait: soon\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadOptional(t *testing.T) {
	t.Run("explicit missing file is an error", func(t *testing.T) {
		_, err := LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, ErrConfigNotFound)
	})

	t.Run("no default file yields defaults", func(t *testing.T) {
		t.Chdir(t.TempDir())

		cfg, err := LoadOptional("")
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("default file in working directory is used", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("s3:\n  bucket: from-cwd\n"), 0644))
		t.Chdir(dir)

		cfg, err := LoadOptional("")
		require.NoError(t, err)
		assert.Equal(t, "from-cwd", cfg.S3.Bucket)
	})
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Server.MaxParallelism = -1
	cfg.Log.Format = "xml"
	cfg.Loader.BatchWait = -time.Second

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, snapshots.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "s3 bucket is required")
	assert.Contains(t, err.Error(), "max parallelism")
	assert.Contains(t, err.Error(), "log format")
	assert.Contains(t, err.Error(), "batch wait cannot be negative")
}
