package sync

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy retries an operation a bounded number of times with a
// fixed delay between attempts.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
}

// NewRetryPolicy creates a retry policy. MaxAttempts below 1 is
// clamped to a single attempt.
func NewRetryPolicy(maxAttempts int, delay time.Duration) *RetryPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &RetryPolicy{
		MaxAttempts: maxAttempts,
		Delay:       delay,
	}
}

// Execute runs fn until it succeeds, the attempts are exhausted, or the
// context is cancelled.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	return rp.ExecuteWithCondition(ctx, fn, nil)
}

// ExecuteWithCondition runs fn like Execute, but consults shouldRetry
// after each failure. An error shouldRetry rejects is returned
// immediately without burning the remaining attempts. A nil shouldRetry
// retries every error.
func (rp *RetryPolicy) ExecuteWithCondition(ctx context.Context, fn func() error, shouldRetry func(error) bool) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		lastErr = err

		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}

		if attempt == rp.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(rp.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("all %d attempts failed: %w", rp.MaxAttempts, lastErr)
}
