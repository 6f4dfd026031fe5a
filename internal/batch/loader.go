package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// FetchFunc resolves a set of distinct keys in one call. Keys missing from the
// returned map are reported to their callers as absent.
type FetchFunc[K comparable, V any] func(ctx context.Context, keys []K) (map[K]V, error)

const (
	// drainQuiet is how many consecutive scheduler yields must pass without a
	// new registration before a zero-wait window is dispatched.
	drainQuiet = 4

	// drainLimit caps the yields a zero-wait window spends draining while
	// callers keep arriving.
	drainLimit = 256
)

// Options controls how long a batch window stays open and how large it may grow.
type Options struct {
	// Wait is how long a window stays open after its first key is registered.
	// Zero drains instead: the window closes once the scheduler has yielded
	// several times in a row without a new key being registered.
	Wait time.Duration

	// MaxBatch closes the window early once it holds this many distinct keys.
	// Zero means no limit.
	MaxBatch int
}

// Loader batches Load calls for a single scope, typically one inbound request.
// Safe for concurrent use by multiple goroutines.
type Loader[K comparable, V any] struct {
	scope    context.Context
	fetch    FetchFunc[K, V]
	wait     time.Duration
	maxBatch int
	yield    func()

	// All further fields are protected by mu
	mu      sync.Mutex
	pending *window[K, V]
}

// window is one batch: the keys gathered while it was open and, once done is
// closed, the outcome of its fetch.
type window[K comparable, V any] struct {
	keys       []K
	seen       map[K]struct{}
	waiters    int
	timer      *time.Timer
	dispatched bool

	done   chan struct{}
	values map[K]V
	err    error
}

// New creates a Loader whose fetches run under scope.
func New[K comparable, V any](scope context.Context, fetch FetchFunc[K, V], opts Options) *Loader[K, V] {
	if fetch == nil {
		panic("fetch cannot be nil")
	}
	if opts.Wait < 0 {
		opts.Wait = 0
	}
	return &Loader[K, V]{
		scope:    scope,
		fetch:    fetch,
		wait:     opts.Wait,
		maxBatch: opts.MaxBatch,
		yield:    runtime.Gosched,
	}
}

// Load registers key with the open batch and blocks until that batch has been
// fetched. ok is false when the fetch returned no value for key.
func (l *Loader[K, V]) Load(ctx context.Context, key K) (value V, ok bool, err error) {
	w := l.register(key)

	select {
	case <-w.done:
		if w.err != nil {
			return value, false, w.err
		}
		value, ok = w.values[key]
		return value, ok, nil
	case <-ctx.Done():
		return value, false, fmt.Errorf("%w: %w", snapshots.ErrCancelled, ctx.Err())
	case <-l.scope.Done():
		return value, false, fmt.Errorf("%w: %w", snapshots.ErrCancelled, l.scope.Err())
	}
}

// Flush closes the open window, if any, and fetches it without waiting for
// its timer.
func (l *Loader[K, V]) Flush() {
	l.mu.Lock()
	w := l.pending
	l.mu.Unlock()

	if w != nil {
		l.dispatch(w)
	}
}

// Waiting reports how many Load calls are registered with the open window.
func (l *Loader[K, V]) Waiting() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending == nil {
		return 0
	}
	return l.pending.waiters
}

// register adds key to the open window, opening one if needed.
func (l *Loader[K, V]) register(key K) *window[K, V] {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.pending
	if w == nil {
		w = &window[K, V]{
			seen: make(map[K]struct{}),
			done: make(chan struct{}),
		}
		l.pending = w
		if l.wait > 0 {
			w.timer = time.AfterFunc(l.wait, func() { l.dispatch(w) })
		} else {
			go l.drain(w)
		}
	}

	w.waiters++
	if _, dup := w.seen[key]; !dup {
		w.seen[key] = struct{}{}
		w.keys = append(w.keys, key)
	}

	if l.maxBatch > 0 && len(w.keys) >= l.maxBatch {
		// Detach now so later keys open a fresh window; the fetch itself
		// runs outside the lock.
		l.pending = nil
		w.dispatched = true
		w.stopTimer()
		go l.run(w)
	}

	return w
}

// dispatch closes w and runs its fetch, unless that already happened.
func (l *Loader[K, V]) dispatch(w *window[K, V]) {
	l.mu.Lock()
	if w.dispatched {
		l.mu.Unlock()
		return
	}
	w.dispatched = true
	if l.pending == w {
		l.pending = nil
	}
	w.stopTimer()
	l.mu.Unlock()

	l.run(w)
}

// drain keeps a zero-wait window open while callers are still registering
// and dispatches it once registrations stop.
func (l *Loader[K, V]) drain(w *window[K, V]) {
	seen, dispatched := l.registered(w)
	for quiet, i := 0, 0; !dispatched && quiet < drainQuiet && i < drainLimit; i++ {
		l.yield()

		var n int
		n, dispatched = l.registered(w)
		if n == seen {
			quiet++
		} else {
			seen, quiet = n, 0
		}
	}
	if !dispatched {
		l.dispatch(w)
	}
}

func (l *Loader[K, V]) registered(w *window[K, V]) (int, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return w.waiters, w.dispatched
}

func (w *window[K, V]) stopTimer() {
	if w.timer != nil {
		w.timer.Stop()
	}
}

// run fetches the keys of a closed window and releases its waiters.
func (l *Loader[K, V]) run(w *window[K, V]) {
	defer close(w.done)
	defer func() {
		if r := recover(); r != nil {
			w.values = nil
			w.err = fmt.Errorf("%w: batch fetch panicked: %v", snapshots.ErrBackingStore, r)
		}
	}()

	if err := l.scope.Err(); err != nil {
		w.err = fmt.Errorf("%w: %w", snapshots.ErrCancelled, err)
		return
	}

	w.values, w.err = l.fetch(l.scope, w.keys)
	if w.err != nil && l.scope.Err() != nil && !errors.Is(w.err, snapshots.ErrCancelled) {
		w.err = fmt.Errorf("%w: %w", snapshots.ErrCancelled, w.err)
	}
}
