package api

import (
	"context"
	"time"
)

// Retry calls fn up to attempts times, waiting delay*(i+1) after the i-th
// failure. The last error is returned.
func Retry[T any](ctx context.Context, attempts int, delay time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var (
		result T
		err    error
	)
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if i == attempts-1 {
			break
		}

		timer := time.NewTimer(delay * time.Duration(i+1))
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return result, err
}
