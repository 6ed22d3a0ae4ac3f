// Package retry runs fallible operations with bounded exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrTimeout marks a call abandoned because the overall timeout elapsed
// before the attempt sequence completed. It is terminal: the executor
// never retries it, and callers can tell "remote never responded in time"
// apart from "remote rejected" via errors.Is.
var ErrTimeout = errors.New("retry: overall timeout elapsed")

// Operation is a single attempt. It must honor ctx cancellation.
type Operation func(ctx context.Context) error

// Policy controls the attempt schedule. The zero value makes exactly one
// attempt with no retries.
type Policy struct {
	// MaxAttempts is the number of retries after the initial try, so the
	// operation runs at most MaxAttempts+1 times.
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// ShouldRetry classifies an attempt error as transient. Nil retries
	// every error.
	ShouldRetry func(error) bool
}

// Delay returns the backoff before retry n (0-indexed):
// min(InitialDelay * Multiplier^n, MaxDelay).
func (p Policy) Delay(n int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := time.Duration(float64(p.InitialDelay) * math.Pow(mult, float64(n)))
	if d < 0 {
		// float overflow
		d = p.MaxDelay
	}
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Do runs op under the policy, racing the whole sequence against timeout
// (0 disables the race). On success it returns nil. On exhaustion or a
// non-retryable error it returns the last attempt error, never a generic
// "retries exhausted" wrapper, so callers can inspect the root cause.
// If the timeout fires first the returned error matches ErrTimeout and
// wraps the last attempt error. Cancellation of the parent ctx returns
// the context error instead.
func Do(ctx context.Context, p Policy, timeout time.Duration, op Operation) error {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if runCtx.Err() != nil {
			return abandoned(ctx, lastErr)
		}

		err := op(runCtx)
		if err == nil {
			return nil
		}
		lastErr = err

		if runCtx.Err() != nil {
			return abandoned(ctx, lastErr)
		}
		if p.ShouldRetry != nil && !p.ShouldRetry(err) {
			return lastErr
		}
		if attempt >= p.MaxAttempts {
			return lastErr
		}

		if err := sleep(runCtx, p.Delay(attempt)); err != nil {
			return abandoned(ctx, lastErr)
		}
	}
}

// abandoned distinguishes parent cancellation from the overall timeout.
func abandoned(parent context.Context, lastErr error) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if lastErr != nil {
		return fmt.Errorf("%w (last attempt: %w)", ErrTimeout, lastErr)
	}
	return ErrTimeout
}

// sleep waits for d without blocking other goroutines, returning early
// when ctx is done. The timer is drained on the cancellation path.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
	}()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
