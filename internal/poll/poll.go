// Package poll runs bounded, cancellable status checks against asynchronous jobs.
package poll

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sethvargo/go-retry"
)

// ErrExhausted is returned when every attempt ran without the job finishing.
var ErrExhausted = errors.New("poll: attempts exhausted")

var errNotReady = errors.New("poll: not ready")

// Schedule bounds a poll loop. The worst-case wait is Attempts × Interval.
type Schedule struct {
	Attempts int
	Interval time.Duration
}

// Ceiling is the maximum time the schedule can wait between the first and last check.
func (s Schedule) Ceiling() time.Duration {
	return time.Duration(s.Attempts) * s.Interval
}

// CheckFunc reports whether the job is finished. Returning an error stops the
// loop unless it is wrapped with Retryable.
type CheckFunc func(ctx context.Context) (done bool, err error)

// Retryable marks a check error as transient so the loop keeps polling.
func Retryable(err error) error {
	return retry.RetryableError(err)
}

// Until calls check on the schedule until it reports done, returns a
// non-retryable error, the attempts run out or ctx ends.
func Until(ctx context.Context, s Schedule, check CheckFunc) error {
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	b := retry.WithMaxRetries(uint64(attempts-1), retry.NewConstant(s.Interval))

	err := retry.Do(ctx, b, func(ctx context.Context) error {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if !done {
			return retry.RetryableError(errNotReady)
		}
		return nil
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errNotReady):
		return eris.Wrapf(ErrExhausted, "poll: job not finished after %d attempts", attempts)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return eris.Wrap(err, "poll: cancelled")
	default:
		return err
	}
}
