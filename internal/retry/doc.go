// Package retry re-runs operations that fail with transient errors, waiting
// an exponentially growing, jittered delay between attempts.
//
// It is used while establishing the PostgreSQL pool at startup. Snapshot
// batches are never retried: a failed batch is reported to its callers as is.
//
//	exec := retry.NewExecutor(retry.NewPostgresClassifier(), retry.NewBackoff(3))
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return pool.Ping(ctx)
//	})
package retry
