package retry

import (
	"context"
	"time"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// RetryFunc is notified before each retry is scheduled.
type RetryFunc func(attempt int, err error, delay time.Duration)

// Executor runs an operation until it succeeds, fails fatally or runs out of
// attempts. An Executor is immutable and safe for concurrent use.
type Executor struct {
	classifier snapshots.ErrorClassifier
	strategy   snapshots.BackoffStrategy
	onRetry    RetryFunc
}

// NewExecutor panics if classifier or strategy is nil.
func NewExecutor(classifier snapshots.ErrorClassifier, strategy snapshots.BackoffStrategy) *Executor {
	if classifier == nil {
		panic("classifier cannot be nil")
	}
	if strategy == nil {
		panic("strategy cannot be nil")
	}
	return &Executor{classifier: classifier, strategy: strategy}
}

// WithOnRetry returns a copy of e that calls fn before every retry.
func (e *Executor) WithOnRetry(fn RetryFunc) *Executor {
	clone := *e
	clone.onRetry = fn
	return &clone
}

// Execute runs op, retrying transient failures. It returns the last error
// seen, or ctx.Err() if ctx ends while waiting between attempts.
func (e *Executor) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	err := op(ctx)
	limit := e.strategy.MaxAttempts()

	for attempt := 0; err != nil && e.classifier.IsTransient(err); attempt++ {
		if limit >= 0 && attempt >= limit {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		delay := e.strategy.NextDelay(attempt)
		if e.onRetry != nil {
			e.onRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		err = op(ctx)
	}
	return err
}
