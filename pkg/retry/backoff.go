package retry

import (
	"context"
	"math"
	"time"
)

// Backoff computes the delay before the next retry attempt.
type Backoff interface {
	Next(attempt int) time.Duration
}

// ExponentialBackoff grows delays by powers of two, capped at Max.
type ExponentialBackoff struct {
	Base time.Duration
	Max  time.Duration
}

// Next returns the delay for the given attempt (1-based).
func (b ExponentialBackoff) Next(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := b.Base
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	limit := time.Duration(math.MaxInt64)
	if b.Max > 0 {
		limit = b.Max
	}
	delay := base
	for i := 1; i < attempt; i++ {
		if delay > limit/2 {
			delay = limit
			break
		}
		delay *= 2
	}
	if delay > limit {
		return limit
	}
	return delay
}

// DefaultBackoff returns the default exponential retry policy.
func DefaultBackoff() Backoff {
	return ExponentialBackoff{
		Base: 100 * time.Millisecond,
		Max:  5 * time.Second,
	}
}

// Do runs fn up to attempts times, sleeping per backoff between failures.
// It returns the last error, or ctx.Err() when cancelled while waiting.
func Do(ctx context.Context, attempts int, backoff Backoff, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}
	if backoff == nil {
		backoff = DefaultBackoff()
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		timer := time.NewTimer(backoff.Next(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
