// Package retry re-runs operations that fail transiently.
//
// The store guards every account write with an optimistic version check, so
// two writers racing on the same account leave the loser with a conflict
// error; the fix is to re-read and try again. Do wraps that loop with
// exponential backoff and jitter so a hot account backs off instead of
// spinning, while errors marked Permanent (a missing account, a validation
// failure) abort immediately.
package retry

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"time"
)

// PermanentError marks an error that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do stops on it immediately. Do returns the
// underlying error, so errors.Is checks at the call site keep working.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// Do calls fn up to maxAttempts times, sleeping between attempts with
// exponential backoff and +-25% jitter starting from baseDelay. It returns
// nil on the first success, the unwrapped error on a Permanent failure, the
// context error if ctx ends during a backoff sleep, and otherwise the last
// error fn returned.
func Do(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var err error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var pe *PermanentError
		if errors.As(err, &pe) {
			return pe.Err
		}
		if attempt == maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(withJitter(delay)):
		}
		delay *= 2
	}
	return err
}

// withJitter spreads a delay uniformly across [0.75d, 1.25d] so retries from
// concurrent losers of the same version race do not land in lockstep.
func withJitter(d time.Duration) time.Duration {
	spread := d / 4
	if spread <= 0 {
		return d
	}
	var b [8]byte
	_, _ = rand.Read(b[:])
	v := binary.LittleEndian.Uint64(b[:]) >> 1
	offset := time.Duration(v % uint64(2*spread+1)) // #nosec G115 -- bounded by 2*spread+1
	return d - spread + offset
}
