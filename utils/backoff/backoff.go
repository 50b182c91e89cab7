package backoff

import (
	"context"
	"time"
)

// Retry executes f up to attempts times, doubling the wait after every failure
// starting at sleep. It returns nil on the first success, the last error when all
// attempts fail, or immediately when shouldRetry rejects an error or ctx is done.
func Retry(ctx context.Context, attempts int, sleep time.Duration, f func(ctx context.Context) error, shouldRetry func(error) bool) error {
	if attempts < 1 {
		attempts = 1
	}
	if sleep <= 0 {
		sleep = time.Second
	}
	var lastErr error
	for cur := 0; cur < attempts; cur++ {
		err := f(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if shouldRetry != nil && !shouldRetry(err) {
			return err
		}
		if cur == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return lastErr
		case <-time.After(sleep):
		}
		sleep *= 2
	}
	return lastErr
}
