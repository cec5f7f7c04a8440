package bank

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultRetryAttempts bounds optimistic retries of a unit of work.
const DefaultRetryAttempts = 5

// WithRetry runs fn, retrying while it fails with ErrConcurrencyConflict.
// Any other error is returned immediately. When attempts run out the last
// conflict is returned as a *ConflictError.
func WithRetry(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	backoff := retry.NewExponential(2 * time.Millisecond)
	backoff = retry.WithJitterPercent(20, backoff)
	backoff = retry.WithCappedDuration(50*time.Millisecond, backoff)
	backoff = retry.WithMaxRetries(uint64(attempts-1), backoff)

	var tries int
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		tries++
		err := fn(ctx)
		if errors.Is(err, ErrConcurrencyConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil && errors.Is(err, ErrConcurrencyConflict) {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			return err
		}
		return &ConflictError{Attempts: tries, Err: err}
	}
	return err
}
