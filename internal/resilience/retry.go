// Package resilience provides bounded retry with exponential backoff
// for calls to remote AI services.
package resilience

import (
	"context"
	"time"

	"github.com/custodia-labs/docchat-cli/internal/logger"
)

// RetryOpts configures the retry policy.
type RetryOpts struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BaseDelay is the delay before the second attempt; it doubles on
	// each further attempt.
	BaseDelay time.Duration

	// MaxDelay caps the per-attempt delay.
	MaxDelay time.Duration
}

// DefaultRetryOpts provides sensible defaults for remote API calls.
var DefaultRetryOpts = RetryOpts{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    8 * time.Second,
}

// Retry runs fn up to opts.MaxAttempts times, sleeping an
// exponentially increasing delay between attempts. It stops early when
// fn succeeds or the context is cancelled, and otherwise returns the
// last error. Callers wrap that error in their domain sentinel.
func Retry(ctx context.Context, opts RetryOpts, fn func(context.Context) error) error {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultRetryOpts.MaxAttempts
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = DefaultRetryOpts.BaseDelay
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = DefaultRetryOpts.MaxDelay
	}

	var lastErr error
	delay := opts.BaseDelay

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == opts.MaxAttempts {
			break
		}

		logger.Debug("Attempt %d/%d failed, retrying in %s: %v",
			attempt, opts.MaxAttempts, delay, lastErr)

		if err := sleep(ctx, delay); err != nil {
			return err
		}

		delay *= 2
		if delay > opts.MaxDelay {
			delay = opts.MaxDelay
		}
	}

	return lastErr
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
