// Package retry wraps B2 calls made by the glue components (uploader,
// gateway, CLI) in a bounded exponential backoff. The b2 client itself
// only ever performs its single re-authorization retry; everything
// beyond that is policy and lives here.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/NeKzor/b2"
)

const (
	DefaultMaxAttempts = 4
	DefaultBaseDelay   = 250 * time.Millisecond
)

// Config controls retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the
	// first. Zero or negative means DefaultMaxAttempts.
	MaxAttempts int

	// BaseDelay is the first retry delay; each further retry doubles
	// it. Zero means DefaultBaseDelay.
	BaseDelay time.Duration

	// DelayFunc overrides the exponential schedule per attempt and
	// error. Return a negative duration to skip sleeping.
	DelayFunc func(attempt int, err error) time.Duration

	// ShouldRetry decides whether an error is worth another attempt.
	// Nil retries every non-nil error until attempts run out.
	ShouldRetry func(error) bool

	// Sleeper lets tests observe sleeps. Nil means time.Sleep; it is
	// only consulted when ctx is nil, otherwise a timer honors
	// cancellation.
	Sleeper func(time.Duration)
}

// Do executes op until it succeeds, ShouldRetry declines, attempts run
// out, or ctx is canceled. The last error is returned.
func Do(ctx context.Context, cfg Config, op func(attempt int) error) error {
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	base := cfg.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = func(err error) bool { return err != nil }
	}

	sleeper := cfg.Sleeper
	if sleeper == nil {
		sleeper = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		err := op(attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == maxAttempts-1 || !shouldRetry(err) {
			return lastErr
		}

		// No jitter, so tests can assert the schedule.
		delay := base * time.Duration(1<<attempt)
		if cfg.DelayFunc != nil {
			delay = cfg.DelayFunc(attempt, err)
		}
		if delay < 0 {
			continue
		}

		if ctx != nil {
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		} else {
			sleeper(delay)
		}
	}

	return lastErr
}

// Temporary reports whether another attempt at a B2 call could
// succeed. Validation and authorization failures are permanent, API
// errors defer to the server's status, and anything else is treated as
// a transport hiccup.
func Temporary(err error) bool {
	var validationErr *b2.ValidationError
	if errors.As(err, &validationErr) {
		return false
	}
	var authErr *b2.AuthorizationError
	if errors.As(err, &authErr) {
		return false
	}
	var apiErr *b2.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Temporary()
	}
	return true
}

// ServerDelay builds a DelayFunc that prefers the Retry-After advice
// carried by a B2 error over the exponential schedule.
func ServerDelay(base time.Duration) func(attempt int, err error) time.Duration {
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return func(attempt int, err error) time.Duration {
		var apiErr *b2.APIError
		if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
			return apiErr.RetryAfter
		}
		return base * time.Duration(1<<attempt)
	}
}
