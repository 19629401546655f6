package service

import (
	"context"
	"time"

	"github.com/clausa-ai/clausa/internal/domain"
)

// RetryConfig holds the exponential backoff policy for transient failures.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// OnRetry is invoked before each retry sleep, for observability.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryConfig retries three times starting at one second, doubling
// up to ten seconds.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	}
}

// Retry runs fn, retrying transient failures with exponentially growing
// delays. The first successful result is returned without exhausting the
// budget; non-transient errors are surfaced immediately.
func Retry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !domain.IsTransient(err) {
			return zero, err
		}
		lastErr = err

		if attempt >= cfg.MaxRetries {
			break
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, delay, err)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return zero, lastErr
}

// CallWithTimeout races fn against a timer. When the timer fires first the
// wait is abandoned and a timeout error is returned; the remote operation
// is fire-and-forget at that point and not necessarily cancelled
// server-side, so fn must be safe to re-issue.
func CallWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		value T
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		value, err := fn(tctx)
		ch <- outcome{value: value, err: err}
	}()

	select {
	case o := <-ch:
		return o.value, o.err
	case <-tctx.Done():
		var zero T
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		return zero, domain.NewTimeoutError(timeout)
	}
}
