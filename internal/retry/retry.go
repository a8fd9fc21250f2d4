// Package retry implements the backoff policy shared by the embedding
// and generation clients. Transient failures are retried with bounded
// exponential backoff; rate-limited attempts start from a longer delay
// and honor the service's retry-after hint when one was given.
package retry

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultBaseDelay      = 500 * time.Millisecond
	defaultMaxDelay       = 8 * time.Second
	defaultRateLimitDelay = 2 * time.Second

	// Shifts beyond this would overflow; the cap applies first anyway.
	maxBackoffShift = 16
)

type Policy struct {
	// MaxAttempts counts the first try. Values below 1 mean a single
	// attempt with no retries.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff for transient errors.
	BaseDelay time.Duration
	// RateLimitDelay seeds the backoff after a rate-limited attempt.
	RateLimitDelay time.Duration
	// MaxDelay caps a single wait.
	MaxDelay time.Duration
	// Jitter randomizes each wait by this fraction in both directions.
	Jitter float64
	// OnRetry, when set, observes each retry before the wait.
	OnRetry func(attempt int, err error)
}

// PermanentError stops retrying and surfaces the wrapped error as is.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RateLimitError marks an attempt rejected for rate limiting.
// RetryAfter is zero when the service gave no hint.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string { return e.Err.Error() }
func (e *RateLimitError) Unwrap() error { return e.Err }

// Do runs op until it succeeds, returns a permanent error, or the
// attempt ceiling is reached. The wait between attempts respects ctx;
// a canceled context returns immediately. Timeouts inside op retry
// like any other transient failure as long as ctx itself is alive.
func (p Policy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		var perm *PermanentError
		if errors.As(err, &perm) {
			return perm.Err
		}
		lastErr = err

		if ctx.Err() != nil || attempt == attempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}

		select {
		case <-time.After(p.delay(attempt, err)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

func (p Policy) delay(attempt int, err error) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = defaultBaseDelay
	}
	max := p.MaxDelay
	if max <= 0 {
		max = defaultMaxDelay
	}

	var rle *RateLimitError
	rateLimited := errors.As(err, &rle)
	if rateLimited {
		base = p.RateLimitDelay
		if base <= 0 {
			base = defaultRateLimitDelay
		}
	}

	if attempt > maxBackoffShift {
		attempt = maxBackoffShift
	}
	d := base << uint(attempt)
	if d > max || d <= 0 {
		d = max
	}
	if rateLimited && rle.RetryAfter > d {
		d = rle.RetryAfter
	}

	if p.Jitter > 0 {
		spread := (rand.Float64()*2 - 1) * p.Jitter * float64(d)
		d += time.Duration(spread)
		if d < 0 {
			d = 0
		}
	}
	return d
}
