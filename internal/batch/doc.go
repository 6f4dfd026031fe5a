// Package batch coalesces concurrent single-key lookups into bulk fetches.
//
// A Loader collects the keys requested by concurrent callers during a short
// window, fetches the deduplicated set with a single call, and hands every
// caller the value for its own key. The first key registered in a window arms
// a timer; when it fires (or when MaxBatch distinct keys are pending) the
// window closes and the batch is fetched. Keys registered afterwards open a
// new window.
//
// A fetch error is shared by every caller of that batch. Batches are
// independent of each other and nothing is cached between them.
//
// # Example Usage
//
//	l := batch.New(ctx, func(ctx context.Context, ids []uint32) (map[uint32]string, error) {
//	    return lookupNames(ctx, ids)
//	}, batch.Options{Wait: time.Millisecond})
//
//	name, ok, err := l.Load(ctx, 42)
//
// # Cancellation
//
// The context passed to New scopes the Loader. Fetches run under it, and once
// it is done every waiting caller is released with snapshots.ErrCancelled.
// A caller whose own context ends stops waiting without affecting the batch.
package batch
