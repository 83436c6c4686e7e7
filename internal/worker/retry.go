package worker

import (
	"context"
	"errors"
	"math"
	"time"
)

// RetryPolicy defines exponential backoff parameters and a per-attempt timeout.
type RetryPolicy struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	BackoffFactor  float64
	AttemptTimeout time.Duration
	// Retryable decides whether an error is worth another attempt. Nil retries everything
	// except context cancellation.
	Retryable func(error) bool
}

// Once is the policy used for store and messaging calls: one retry after a short pause.
func Once(timeout time.Duration) RetryPolicy {
	return RetryPolicy{
		MaxRetries:     1,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       2 * time.Second,
		BackoffFactor:  2,
		AttemptTimeout: timeout,
	}
}

// NextDelay returns delay for a given attempt (1-based) with clamping.
func (r RetryPolicy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if r.InitialDelay <= 0 {
		r.InitialDelay = time.Second
	}
	if r.BackoffFactor <= 0 {
		r.BackoffFactor = 2
	}

	delay := float64(r.InitialDelay) * math.Pow(r.BackoffFactor, float64(attempt-1))
	d := time.Duration(delay)
	if r.MaxDelay > 0 && d > r.MaxDelay {
		d = r.MaxDelay
	}
	if d <= 0 {
		d = time.Second
	}
	return d
}

func (r RetryPolicy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if r.Retryable != nil {
		return r.Retryable(err)
	}
	return true
}

// Do runs fn until it succeeds, the retries are used up, or ctx is done.
// Each attempt gets its own AttemptTimeout when set.
func Do(ctx context.Context, policy RetryPolicy, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= policy.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(policy.NextDelay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}

		err = runAttempt(ctx, policy.AttemptTimeout, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !policy.retryable(err) {
			return err
		}
	}
	return err
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}
