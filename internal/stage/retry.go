package stage

import (
	"context"
	"time"
)

// RetryPolicy bounds per-item retries with a fixed inter-attempt delay.
// Decoupling the policy from the run loop keeps the retry shape testable
// and lets stages carry different budgets.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// DefaultRetryPolicy matches the budgets the stages ship with.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 2 * time.Second}
}

// ShouldRetry reports whether another attempt is allowed after a failure.
// Cancellation of the run context is never retried.
func (p RetryPolicy) ShouldRetry(ctx context.Context, attempt int) bool {
	if ctx.Err() != nil {
		return false
	}
	return attempt < p.MaxAttempts
}

// Wait sleeps the inter-attempt delay, returning early if ctx finishes.
func (p RetryPolicy) Wait(ctx context.Context) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
