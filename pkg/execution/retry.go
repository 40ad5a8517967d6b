package execution

import (
	"context"
	"math/rand"
	"time"
)

// RetryableFunc is a function that can be retried.
// It returns a result of type T and an error.
// The error should be nil if the function was successful.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// RetryPolicy controls WithRetry.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries every error.
	Retryable func(error) bool
}

// WithRetry executes a function with a retry mechanism.
// It uses exponential backoff with jitter to space out retries and stops early
// when the context is done or the error is not retryable.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, fn RetryableFunc[T]) (T, error) {
	var result T
	var err error

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for i := 0; i < attempts; i++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if policy.Retryable != nil && !policy.Retryable(err) {
			return result, err
		}
		if i == attempts-1 {
			break
		}

		backoff := policy.InitialBackoff * (1 << i)
		if policy.MaxBackoff > 0 && backoff > policy.MaxBackoff {
			backoff = policy.MaxBackoff
		}
		if jitterRange := int64(backoff / 4); jitterRange > 0 {
			backoff += time.Duration(rand.Int63n(jitterRange))
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, err
		case <-timer.C:
		}
	}

	return result, err
}
