// Package retrier retries exchange calls with exponential backoff and jitter.
package retrier

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultInitialInterval = 500 * time.Millisecond
	defaultMaxInterval     = 30 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxRetries      = 5
	defaultJitter          = 0.1
)

// Retrier exponential backoff policy. Errors rejected by the retry predicate
// are returned immediately.
type Retrier struct {
	initialInterval time.Duration
	maxInterval     time.Duration
	multiplier      float64
	maxRetries      int
	jitter          float64
	retryable       func(error) bool
	onRetry         func(attempt int, err error, wait time.Duration)
}

// Option configures the Retrier.
type Option func(*Retrier)

// WithInitialInterval sets the wait before the first retry.
func WithInitialInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = d
	}
}

// WithMaxInterval caps the wait between retries.
func WithMaxInterval(d time.Duration) Option {
	return func(r *Retrier) {
		r.maxInterval = d
	}
}

// WithMultiplier sets the backoff multiplier.
func WithMultiplier(m float64) Option {
	return func(r *Retrier) {
		r.multiplier = m
	}
}

// WithMaxRetries sets the number of retries after the first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		r.maxRetries = n
	}
}

// WithJitter sets the jitter factor (0.0 to 1.0).
func WithJitter(j float64) Option {
	return func(r *Retrier) {
		r.jitter = j
	}
}

// WithRetryIf retries only errors for which fn returns true.
func WithRetryIf(fn func(error) bool) Option {
	return func(r *Retrier) {
		r.retryable = fn
	}
}

// WithOnRetry registers a hook called before each wait.
func WithOnRetry(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// New creates a Retrier with defaults and optional overrides.
func New(opts ...Option) *Retrier {
	r := &Retrier{
		initialInterval: defaultInitialInterval,
		maxInterval:     defaultMaxInterval,
		multiplier:      defaultMultiplier,
		maxRetries:      defaultMaxRetries,
		jitter:          defaultJitter,
		retryable:       func(error) bool { return true },
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Do runs fn until it succeeds, returns a non-retryable error, retries run out
// or ctx is done.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	interval := r.initialInterval

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= r.maxRetries || !r.retryable(err) {
			return err
		}

		wait := r.withJitter(interval)
		if r.onRetry != nil {
			r.onRetry(attempt+1, err, wait)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		interval = time.Duration(float64(interval) * r.multiplier)
		if interval > r.maxInterval {
			interval = r.maxInterval
		}
	}
}

func (r *Retrier) withJitter(interval time.Duration) time.Duration {
	jitter := (rand.Float64()*2 - 1) * r.jitter * float64(interval)
	wait := time.Duration(float64(interval) + jitter)
	if wait < 0 {
		return 0
	}
	return wait
}

// DoWithData runs fn with retries and returns its value.
func DoWithData[T any](r *Retrier, ctx context.Context, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := r.Do(ctx, func(ctx context.Context) error {
		var e error
		result, e = fn(ctx)
		return e
	})
	return result, err
}
