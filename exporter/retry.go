package exporter

import (
	"context"
	"math/rand"
	"time"
)

// RetryPolicy wraps an operation with retries.
type RetryPolicy interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

type nopRetry struct{}

func (nopRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// SimpleRetry retries an operation using exponential backoff.
//
// By default it retries on any error returned by fn. Set Retryable to stop
// early on errors that will not go away.
type SimpleRetry struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool
	Retryable func(error) bool
}

func (r SimpleRetry) retryable(err error) bool {
	return r.Retryable == nil || r.Retryable(err)
}

func (r SimpleRetry) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	attempts := r.Attempts
	if attempts <= 0 {
		attempts = 1
	}

	if r.BaseDelay <= 0 && r.MaxDelay <= 0 {
		var last error
		for i := 0; i < attempts; i++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			last = fn(ctx)
			if last == nil || !r.retryable(last) {
				return last
			}
		}
		return last
	}

	base := r.BaseDelay
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	max := r.MaxDelay
	if max <= 0 {
		max = 2 * time.Second
	}
	if max < base {
		max = base
	}

	var last error
	delay := base

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil || !r.retryable(last) {
			return last
		}

		if i == attempts-1 {
			break
		}

		d := delay
		if r.Jitter {
			j := 0.8 + rand.Float64()*0.4
			d = time.Duration(float64(d) * j)
		}
		if d > max {
			d = max
		}

		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > max {
			delay = max
		}
	}

	return last
}
