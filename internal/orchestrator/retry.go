package orchestrator

import (
	"context"
	"time"
)

// Policy bounds remote retries. MaxRetries counts attempts, not re-attempts.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

var DefaultPolicy = Policy{MaxRetries: 3, BaseDelay: 500 * time.Millisecond}

// Delay is the wait before attempt n (0-based); the first attempt has none.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return p.BaseDelay << (n - 1)
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// policy's attempts are spent. The last error is returned.
func Retry(ctx context.Context, policy Policy, sleep SleepFunc, fn func(ctx context.Context, attempt int) error) error {
	if sleep == nil {
		sleep = sleepContext
	}
	attempts := policy.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, policy.Delay(attempt)); err != nil {
				return lastErr
			}
		}
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err
		if !AsProviderError(err).Retryable() || ctx.Err() != nil {
			return err
		}
	}
	return lastErr
}
