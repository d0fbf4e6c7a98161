package util

import (
	"context"
	"time"
)

// RetryPolicy bounds repeated attempts of a fallible operation.
// Delay doubles after each failure up to MaxDelay.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// ReadRetryPolicy is the default policy for idempotent reads
func ReadRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 2, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// MutationRetryPolicy is the default policy for state-changing calls
func MutationRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxRetries: 1, BaseDelay: time.Second, MaxDelay: 10 * time.Second}
}

// Retry runs fn up to 1+MaxRetries times with exponential backoff.
// It returns the first success or the last error; a cancelled context
// stops further attempts.
func Retry(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	delay := policy.BaseDelay
	var lastErr error

	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > policy.MaxDelay {
				delay = policy.MaxDelay
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
	}

	return lastErr
}
