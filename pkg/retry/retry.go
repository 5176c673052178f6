// Package retry runs operations under a bounded exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

// Policy controls how many times an operation is attempted and how long to
// wait between attempts. The wait before attempt n+1 is BaseDelay*2^n plus a
// uniform jitter in [0, Jitter*delay].
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	Jitter    float64
	Retriable func(error) bool
	// OnRetry is invoked before sleeping; attempt is 1-based.
	OnRetry func(attempt int, err error)
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default mirrors the storage layer policy: three attempts, one second base.
func Default(retriable func(error) bool) Policy {
	return Policy{Attempts: 3, BaseDelay: time.Second, Jitter: 0.1, Retriable: retriable}
}

// Do runs op until it succeeds, returns a non-retriable error, or the
// attempts are exhausted. The last error is returned unchanged.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Value(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Value is Do for operations producing a result.
func Value[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var (
		result T
		err    error
	)
	for attempt := 0; attempt < attempts; attempt++ {
		result, err = op(ctx)
		if err == nil {
			return result, nil
		}
		if p.Retriable != nil && !p.Retriable(err) {
			return result, err
		}
		if attempt == attempts-1 {
			break
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
		if serr := sleep(ctx, p.backoff(attempt)); serr != nil {
			return result, err
		}
	}
	return result, err
}

func (p Policy) backoff(attempt int) time.Duration {
	delay := p.BaseDelay << uint(attempt)
	if p.Jitter > 0 && delay > 0 {
		delay += time.Duration(rand.Float64() * p.Jitter * float64(delay))
	}
	return delay
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
