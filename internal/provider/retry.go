package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const maxAttempts = 3

// retryBaseDelay is the backoff unit; attempt n sleeps base<<n. Tests shrink
// this to keep runs fast.
var retryBaseDelay = time.Second

// callWithRetry runs one provider call up to maxAttempts times. Only
// rate-limit-class failures are retried, with exponential backoff between
// attempts; every other error returns immediately. Exhausting all attempts
// escalates the last rate-limit error.
func callWithRetry(ctx context.Context, call func(context.Context) ([]string, Usage, error)) ([]string, Usage, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		bullets, usage, err := call(ctx)
		if err == nil {
			return bullets, usage, nil
		}

		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.RateLimited {
			return nil, Usage{}, err
		}
		lastErr = err

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return nil, Usage{}, ctx.Err()
			case <-time.After(retryBaseDelay << attempt):
			}
		}
	}

	return nil, Usage{}, fmt.Errorf("rate limited after %d attempts: %w", maxAttempts, lastErr)
}
