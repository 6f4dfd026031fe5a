package snapshots

import (
	"errors"
	"fmt"
	"time"
)

// SnapshotRecord is one DataCollection row as far as snapshots are concerned.
type SnapshotRecord struct {
	// DataCollectionID is the key the record was fetched by.
	DataCollectionID uint32

	// Paths holds xtalSnapshotFullPath1..4; a nil entry is an empty slot.
	Paths [SnapshotSlots]*string
}

// RawPaths returns the non-empty slots in slot order.
func (r SnapshotRecord) RawPaths() []string {
	paths := make([]string, 0, SnapshotSlots)
	for _, p := range r.Paths {
		if p != nil {
			paths = append(paths, *p)
		}
	}
	return paths
}

// LoaderOptions tunes the batching behaviour of a snapshot loader.
type LoaderOptions struct {
	// BatchWait is how long a batch stays open for further keys once its first
	// key is registered. Zero dispatches as soon as concurrent callers stop
	// registering keys, measured in scheduler yields rather than time.
	BatchWait time.Duration

	// MaxBatch dispatches a batch early once it holds this many distinct keys.
	// Zero means unbounded.
	MaxBatch int

	// SignConcurrency bounds the signing calls in flight for one batch.
	SignConcurrency int
}

// Validate checks the options for values that cannot work.
// It returns a multi-error if multiple validation failures occur.
func (o *LoaderOptions) Validate() error {
	var errs []error

	if o.BatchWait < 0 {
		errs = append(errs, fmt.Errorf("batch wait cannot be negative: %w", ErrInvalidConfig))
	}
	if o.MaxBatch < 0 {
		errs = append(errs, fmt.Errorf("max batch cannot be negative: %w", ErrInvalidConfig))
	}
	if o.SignConcurrency < 1 {
		errs = append(errs, fmt.Errorf("sign concurrency must be at least 1: %w", ErrInvalidConfig))
	}

	return errors.Join(errs...)
}

// DefaultLoaderOptions returns the options used when nothing is configured.
func DefaultLoaderOptions() LoaderOptions {
	return LoaderOptions{
		BatchWait:       DefaultBatchWait,
		SignConcurrency: DefaultSignConcurrency,
	}
}

// ConnectionConfig represents parsed connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
	SSLMode  string

	// AuthMethod indicates the authentication mechanism to use
	AuthMethod AuthMethod

	// Additional connection parameters
	AppName          string
	ConnectTimeout   time.Duration
	AdditionalParams map[string]string

	// AWSRegion is used when AuthMethod is AuthMethodAWSIAM.
	AWSRegion string

	// GoogleInstance is the Cloud SQL instance (project:region:instance) used
	// when AuthMethod is AuthMethodGoogleIAM.
	GoogleInstance string

	// Azure Entra ID authentication parameters (used when AuthMethod is AuthMethodAzureEntraID)
	// If all three are provided, Service Principal authentication is used.
	// If none are provided, DefaultAzureCredential chain is used (env vars, managed identity, CLI, etc.)
	AzureTenantID     string
	AzureClientID     string
	AzureClientSecret string
}

// AuthMethod represents the type of authentication to use.
type AuthMethod int

const (
	AuthMethodStandard     AuthMethod = iota // Username/Password
	AuthMethodAWSIAM                         // AWS IAM Database Authentication
	AuthMethodGoogleIAM                      // Google Cloud SQL IAM
	AuthMethodAzureEntraID                   // Azure Active Directory (Entra ID)
)

// String returns a human-readable string representation of the AuthMethod.
func (a AuthMethod) String() string {
	switch a {
	case AuthMethodStandard:
		return "Standard"
	case AuthMethodAWSIAM:
		return "AWS IAM"
	case AuthMethodGoogleIAM:
		return "Google IAM"
	case AuthMethodAzureEntraID:
		return "Azure Entra ID"
	default:
		return fmt.Sprintf("Unknown(%d)", a)
	}
}

// IsValid returns true if the AuthMethod is a valid, defined value.
func (a AuthMethod) IsValid() bool {
	return a >= AuthMethodStandard && a <= AuthMethodAzureEntraID
}
