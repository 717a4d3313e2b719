package restore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/goopsie/binpack/pkg/report"
)

// Cleanup errors.
var (
	ErrTransientLock = report.ErrTransientLock
	ErrCleanupFailed = report.ErrCleanupFailed
)

// RetryPolicy is an exponential backoff for envelope deletion. Removal is
// attempted at most Attempts times. Every attempt that hits a transient lock
// is followed by a wait that starts at Initial and doubles each time.
type RetryPolicy struct {
	Attempts int
	Initial  time.Duration

	// Test hooks.
	removeFn func(string) error
	sleepFn  func(context.Context, time.Duration) error
}

// DefaultRetryPolicy makes 5 attempts, waiting 100, 200, 400, 800 and 1600ms
// after each locked one.
var DefaultRetryPolicy = RetryPolicy{Attempts: 5, Initial: 100 * time.Millisecond}

func (p RetryPolicy) backOff() backoff.BackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     p.Initial,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.Initial << max(p.Attempts, 0),
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	mb := backoff.WithMaxRetries(b, uint64(max(p.Attempts, 0)))
	mb.Reset()
	return mb
}

// Delays returns the wait after each locked attempt.
func (p RetryPolicy) Delays() []time.Duration {
	b := p.backOff()
	var delays []time.Duration
	for d := b.NextBackOff(); d != backoff.Stop; d = b.NextBackOff() {
		delays = append(delays, d)
	}
	return delays
}

// remove deletes path, retrying only transient lock failures. Running out of
// attempts yields ErrCleanupFailed; any other failure is returned as is.
func (p RetryPolicy) remove(ctx context.Context, log logrus.FieldLogger, path string) error {
	removeFn, sleepFn := p.removeFn, p.sleepFn
	if removeFn == nil {
		removeFn = os.Remove
	}
	if sleepFn == nil {
		sleepFn = sleep
	}

	b := backoff.WithContext(p.backOff(), ctx)
	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err := removeFn(path)
		if err == nil || errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if !isTransientLock(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
		lastErr = err

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
		}).Debug("envelope locked, waiting before next removal")
		if err := sleepFn(ctx, delay); err != nil {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	if lastErr == nil {
		lastErr = ErrTransientLock
	}
	return fmt.Errorf("%w: remove %s after %d attempts: %w", ErrCleanupFailed, path, p.Attempts, lockError(lastErr))
}

func isTransientLock(err error) bool {
	return errors.Is(err, ErrTransientLock) || platformTransientLock(err)
}

func lockError(err error) error {
	if errors.Is(err, ErrTransientLock) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientLock, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
