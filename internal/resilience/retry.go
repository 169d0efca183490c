// Package resilience provides the retry and circuit-breaker primitives
// the stage runners (C11) and helper coordinator (C10) use to absorb
// transient ModelClient/helper failures (spec.md §4.4, §7).
package resilience

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/hivetechs-collective/hive-consensus/internal/engineerr"
)

// RetryConfig configures exponential backoff retry behavior.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig matches spec.md §4.4's stage-runner default: 2
// retries, 100ms initial delay doubling up to a 2s cap.
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   2,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      2 * time.Second,
		BackoffFactor: 2.0,
	}
}

// Retry runs fn, retrying up to config.MaxAttempts-1 additional times
// with exponential backoff (capped at MaxDelay) while fn's error is
// retryable (engineerr.IsRetryable) and ctx is not done. A non-retryable
// error returns immediately without further attempts.
func Retry(ctx context.Context, config *RetryConfig, fn func() error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = config.InitialDelay
	bo.MaxInterval = config.MaxDelay
	bo.Multiplier = config.BackoffFactor

	var lastErr error
	attempts := config.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !engineerr.IsRetryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		delay := bo.NextBackOff()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("%w: %v", engineerr.ErrMaxRetriesExceeded, lastErr)
}

// RetryWithCircuitBreaker combines Retry with a CircuitBreaker guard,
// short-circuiting attempts once the breaker trips open.
func RetryWithCircuitBreaker(ctx context.Context, config *RetryConfig, cb *CircuitBreaker, fn func() error) error {
	return Retry(ctx, config, func() error {
		if !cb.CanExecute() {
			return engineerr.ErrCircuitBreakerOpen
		}
		if err := fn(); err != nil {
			cb.RecordFailure()
			return err
		}
		cb.RecordSuccess()
		return nil
	})
}
