// Package config loads the service configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// ErrConfigNotFound is returned when the config file does not exist.
// Callers can check for this with errors.Is(err, config.ErrConfigNotFound).
var ErrConfigNotFound = errors.New("config file not found")

// DefaultFileName is looked up in the working directory when no config file
// is named explicitly.
const DefaultFileName = "crystal-snapshots.yaml"

type ConnectionConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Database       string `yaml:"database"`
	SSLMode        string `yaml:"sslmode"`
	AuthMethod     string `yaml:"auth_method,omitempty"`
	AzureTenantID  string `yaml:"azure_tenant_id,omitempty"`
	AzureClientID  string `yaml:"azure_client_id,omitempty"`
	AWSRegion      string `yaml:"aws_region,omitempty"`
	GoogleInstance string `yaml:"google_instance,omitempty"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region,omitempty"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	PathStyle bool   `yaml:"path_style,omitempty"`

	// VerifyObjects checks that an object exists before signing its path.
	VerifyObjects bool `yaml:"verify_objects,omitempty"`
}

type ServerConfig struct {
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxParallelism  int           `yaml:"max_parallelism"`
}

type LoaderConfig struct {
	BatchWait       time.Duration `yaml:"batch_wait"`
	MaxBatch        int           `yaml:"max_batch"`
	SignConcurrency int           `yaml:"sign_concurrency"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServiceConfig is the full contents of the config file.
type ServiceConfig struct {
	Connection ConnectionConfig `yaml:"connection"`
	S3         S3Config         `yaml:"s3"`
	Server     ServerConfig     `yaml:"server"`
	Loader     LoaderConfig     `yaml:"loader"`
	Log        LogConfig        `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *ServiceConfig {
	cfg := &ServiceConfig{}
	cfg.Loader.BatchWait = snapshots.DefaultBatchWait
	cfg.ApplyDefaults()
	return cfg
}

// Load reads the config file at path. Missing sections keep their defaults.
func Load(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// LoadOptional behaves like Load but falls back to Default when path is
// empty and DefaultFileName does not exist. An explicitly named file must
// exist.
func LoadOptional(path string) (*ServiceConfig, error) {
	if path != "" {
		return Load(path)
	}

	cfg, err := Load(DefaultFileName)
	if errors.Is(err, ErrConfigNotFound) {
		return Default(), nil
	}
	return cfg, err
}

// ApplyDefaults fills in every unset value.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = snapshots.DefaultListenAddr
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = snapshots.DefaultShutdownTimeout
	}
	if c.Server.MaxParallelism == 0 {
		c.Server.MaxParallelism = snapshots.DefaultMaxParallelism
	}
	if c.Loader.SignConcurrency == 0 {
		c.Loader.SignConcurrency = snapshots.DefaultSignConcurrency
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

// LoaderOptions returns the batching options described by the loader section.
// The batch wait defaults in Default only, so an explicit zero in the file
// survives and means "dispatch once callers stop arriving".
func (c *ServiceConfig) LoaderOptions() snapshots.LoaderOptions {
	return snapshots.LoaderOptions{
		BatchWait:       c.Loader.BatchWait,
		MaxBatch:        c.Loader.MaxBatch,
		SignConcurrency: c.Loader.SignConcurrency,
	}
}

// Validate checks the settings the server cannot start without.
// It returns a multi-error if multiple validation failures occur.
func (c *ServiceConfig) Validate() error {
	var errs []error

	if strings.TrimSpace(c.S3.Bucket) == "" {
		errs = append(errs, fmt.Errorf("s3 bucket is required: %w", snapshots.ErrInvalidConfig))
	}
	if c.Server.Listen == "" {
		errs = append(errs, fmt.Errorf("listen address is required: %w", snapshots.ErrInvalidConfig))
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, fmt.Errorf("shutdown timeout cannot be negative: %w", snapshots.ErrInvalidConfig))
	}
	if c.Server.MaxParallelism < 1 {
		errs = append(errs, fmt.Errorf("max parallelism must be at least 1: %w", snapshots.ErrInvalidConfig))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be console or json: %w", c.Log.Format, snapshots.ErrInvalidConfig))
	}

	opts := c.LoaderOptions()
	if err := opts.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
