package snapshots

import "time"

// Exit codes for semantic error classification.
// These follow Unix/GNU conventions:
//   - 0: Success
//   - 1: General error
//   - 2: CLI usage error (misuse of command line)
//   - 3+: Application-specific errors
const (
	ExitSuccess         = 0  // Server shut down cleanly
	ExitGeneralError    = 1  // Unknown or unclassified error
	ExitUsageError      = 2  // CLI usage error (missing args, invalid flags)
	ExitPanic           = 3  // Internal panic (unexpected crash)
	ExitConfigError     = 10 // Invalid configuration
	ExitConnectionError = 11 // Failed to connect to database
	ExitInterrupted     = 12 // Startup interrupted before the server was ready
)

const (
	// SnapshotSlots is the number of raw path columns recorded per data collection.
	SnapshotSlots = 4

	// SignedURLExpiry is how long a signed snapshot URL stays valid after signing.
	SignedURLExpiry = 10 * time.Minute

	// DefaultBatchWait is how long the first lookup of a batch waits for
	// concurrent lookups to join before the bulk query is issued.
	DefaultBatchWait = time.Millisecond

	// DefaultSignConcurrency bounds the signing calls in flight for one batch.
	DefaultSignConcurrency = 16

	// DefaultMaxParallelism bounds the resolvers the GraphQL engine runs concurrently
	// per request. Lookups beyond this limit land in a later batch.
	DefaultMaxParallelism = 64

	// DefaultListenAddr is the address the HTTP server binds when none is configured.
	DefaultListenAddr = "0.0.0.0:80"

	// DefaultShutdownTimeout bounds graceful shutdown of the HTTP server.
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultRetryInitialDelay is the default initial delay before the first retry attempt.
	DefaultRetryInitialDelay = 100 * time.Millisecond

	// DefaultRetryMaxDelay is the default maximum delay between retry attempts.
	DefaultRetryMaxDelay = 1 * time.Minute

	// DefaultRetryMaxAttempts is the default maximum number of retry attempts.
	DefaultRetryMaxAttempts = 3

	// DefaultManagementDB is the database used when none is configured.
	DefaultManagementDB = "postgres"
)
