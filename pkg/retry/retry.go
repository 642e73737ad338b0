// Package retry runs an operation with exponential backoff.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const maxBackoff = 30 * time.Second

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn up to attempts times, sleeping roughly base, 2*base, 4*base...
// between failures, with jitter so competing callers spread out. It stops early on success, on a Permanent error, or when ctx is done.
// The last error is returned unwrapped.
func Do(ctx context.Context, attempts int, base time.Duration, fn func(ctx context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff(base, attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		}

		err = fn(ctx)
		if err == nil {
			return nil
		}
		var p *permanentError
		if errors.As(err, &p) {
			return p.err
		}
	}
	return err
}

// backoff returns a duration in [d/2, d] where d = base * 2^(attempt-1),
// capped at maxBackoff.
func backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	d := maxBackoff
	if attempt-1 < 32 {
		if shifted := base << uint(attempt-1); shifted > 0 && shifted < maxBackoff {
			d = shifted
		}
	}
	half := d / 2
	return half + rand.N(half+1)
}
