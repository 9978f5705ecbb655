package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/stackform-io/stackform/pkg/resource"
)

// DefaultReadyTimeout bounds WAIT operations.
const DefaultReadyTimeout = 5 * time.Minute

// RetryPolicy bounds retries of transient provider errors.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy returns the baseline policy: up to 5 attempts with
// exponential backoff from 1s capped at 30s.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// retryTransient runs fn, retrying under the policy while errors classify as
// transient. Non-transient errors escalate immediately.
func retryTransient(ctx context.Context, policy *RetryPolicy, fn func() error) error {
	if policy == nil {
		policy = DefaultRetryPolicy()
	}
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = policy.BaseDelay
	b.MaxInterval = policy.MaxDelay
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall clock

	wrapped := func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if resource.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}

	limited := backoff.WithMaxRetries(b, uint64(attempts-1))
	return backoff.Retry(wrapped, backoff.WithContext(limited, ctx))
}
