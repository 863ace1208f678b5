// Package retry provides the single retry policy used across agent execution.
// The same policy wraps specialist runs and any other call site that needs
// bounded retries, instead of each embedding its own backoff loop.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy is a bounded exponential backoff: MaxAttempts total attempts, delays
// starting at BaseDelay and doubling each attempt, no jitter.
type Policy struct {
	// MaxAttempts is the total attempt count, including the first.
	MaxAttempts int
	// BaseDelay is the wait before the second attempt.
	BaseDelay time.Duration
}

// DefaultPolicy matches specialist execution: 3 attempts, 2s doubling.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
}

// Do runs op under the policy. retryable decides whether a failure is worth
// another attempt; a nil retryable treats every error as retryable. The last
// error is returned once attempts are exhausted. Backoff sleeps respect ctx
// cancellation.
func (p Policy) Do(ctx context.Context, op func() error, retryable func(error) bool) error {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = p.BaseDelay << uint(p.MaxAttempts)
	b.MaxElapsedTime = 0

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		if retryable != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	return backoff.Retry(wrapped,
		backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(p.MaxAttempts-1)))
}
