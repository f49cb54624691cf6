package base

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/tablecast/tablecast/pkg/errors"
)

// RetryPolicy retries an operation with exponential backoff and jitter.
type RetryPolicy struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	Multiplier      float64
	RandomizeFactor float64
}

// DefaultRetryPolicy suits transient store and network failures.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     3,
		InitialDelay:    time.Second,
		MaxDelay:        30 * time.Second,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// NoRetryPolicy runs the operation exactly once.
func NoRetryPolicy() *RetryPolicy {
	return &RetryPolicy{MaxAttempts: 1}
}

// NewRetryPolicy creates a policy with the default multiplier, cap and
// jitter.
func NewRetryPolicy(maxAttempts int, initialDelay time.Duration) *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:     maxAttempts,
		InitialDelay:    initialDelay,
		MaxDelay:        5 * time.Minute,
		Multiplier:      2.0,
		RandomizeFactor: 0.25,
	}
}

// Execute runs fn until it succeeds, attempts are exhausted, or ctx is
// cancelled. Only retryable error types are retried; validation and data
// errors surface immediately.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt < rp.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return err
		}
		if attempt == rp.MaxAttempts-1 {
			break
		}

		timer := time.NewTimer(rp.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "retry cancelled")
		case <-timer.C:
		}
	}

	return lastErr
}

func (rp *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if d > float64(rp.MaxDelay) {
		d = float64(rp.MaxDelay)
	}
	if rp.RandomizeFactor > 0 {
		delta := d * rp.RandomizeFactor
		d = d - delta + rand.Float64()*2*delta
	}
	return time.Duration(d)
}
