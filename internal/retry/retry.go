package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Policy controls how often a request is attempted. MaxAttempts of one or
// less means a single attempt.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // linear backoff: attempt * Delay

	// Retryable reports whether err is worth another attempt. Nil retries
	// everything except context errors.
	Retryable func(error) bool
}

// Do runs fn until it succeeds, the attempts run out, the error is not
// retryable, or ctx is done.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= attempts || !p.retryable(err) {
			if attempts > 1 {
				return fmt.Errorf("failed after %d attempts: %w", attempt, err)
			}
			return err
		}

		delay := p.Delay
		if p.Backoff {
			delay = time.Duration(attempt) * p.Delay
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (p Policy) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}
