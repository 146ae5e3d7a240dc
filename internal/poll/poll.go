// Package poll implements fixed-interval waiting with a counted timeout.
package poll

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrTimeout is returned by Until when the condition never held.
var ErrTimeout = errors.New("poll: timed out")

// Options controls how often and how many times a condition is checked.
type Options struct {
	Interval time.Duration
	Tries    int
}

// Within builds Options that give up after roughly total, checking every interval.
func Within(total, interval time.Duration) Options {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	tries := int(total / interval)
	if tries < 1 {
		tries = 1
	}
	return Options{Interval: interval, Tries: tries}
}

// Until checks cond immediately and then once per interval until it returns
// true, the tries run out, or ctx is done. An error from cond counts as a
// failed check; the last one is attached to the timeout error.
func Until(ctx context.Context, opts Options, cond func(ctx context.Context) (bool, error)) error {
	tries := opts.Tries
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for i := 0; i < tries; i++ {
		if i > 0 {
			if err := Sleep(ctx, opts.Interval); err != nil {
				return err
			}
		}
		ok, err := cond(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if ok {
			return nil
		}
	}

	if lastErr != nil {
		return fmt.Errorf("%w after %d tries: %v", ErrTimeout, tries, lastErr)
	}
	return fmt.Errorf("%w after %d tries", ErrTimeout, tries)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Every checks cond once per interval, without a try limit, until it
// returns true or ctx is done. Errors from cond are ignored.
func Every(ctx context.Context, interval time.Duration, cond func(ctx context.Context) (bool, error)) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if ok, err := cond(ctx); err == nil && ok {
			return nil
		}
	}
}
