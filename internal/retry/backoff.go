package retry

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/xtal-snapshots/crystal-snapshots/pkg/snapshots"
)

// Backoff computes exponentially growing delays with symmetric jitter.
type Backoff struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
	attempts   int

	// jitter is the fraction by which a delay may deviate either way.
	jitter float64
	random func() float64
}

var _ snapshots.BackoffStrategy = (*Backoff)(nil)

// BackoffOption configures a Backoff.
type BackoffOption func(*Backoff)

// WithInitialDelay sets the delay before the first retry.
func WithInitialDelay(d time.Duration) BackoffOption {
	return func(b *Backoff) { b.initial = d }
}

// WithMaxDelay caps every delay at d before jitter is applied.
func WithMaxDelay(d time.Duration) BackoffOption {
	return func(b *Backoff) { b.max = d }
}

// WithMultiplier sets the growth factor between consecutive delays.
func WithMultiplier(m float64) BackoffOption {
	return func(b *Backoff) { b.multiplier = m }
}

// WithJitter sets the jitter fraction, clamped to [0, 1].
func WithJitter(j float64) BackoffOption {
	return func(b *Backoff) { b.jitter = math.Max(0, math.Min(1, j)) }
}

// WithRandom replaces the source of jitter. f must return values in [0, 1).
func WithRandom(f func() float64) BackoffOption {
	return func(b *Backoff) { b.random = f }
}

// NewBackoff returns a strategy allowing attempts retries (-1 for unlimited).
func NewBackoff(attempts int, opts ...BackoffOption) *Backoff {
	b := &Backoff{
		initial:    snapshots.DefaultRetryInitialDelay,
		max:        snapshots.DefaultRetryMaxDelay,
		multiplier: 2,
		attempts:   attempts,
		jitter:     0.1,
		random:     rand.Float64,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NextDelay returns the wait before retry number attempt (zero based).
func (b *Backoff) NextDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	delay := float64(b.initial) * math.Pow(b.multiplier, float64(attempt))
	if delay > float64(b.max) || math.IsInf(delay, 1) {
		delay = float64(b.max)
	}

	if b.jitter > 0 {
		delay *= 1 + b.jitter*(b.random()*2-1)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// MaxAttempts returns the number of retries allowed after the first attempt.
func (b *Backoff) MaxAttempts() int {
	return b.attempts
}
