// Package retry provides a bounded-attempt combinator used at the session
// and sub-category work-unit boundaries instead of ad-hoc retry loops.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type Options struct {
	// Attempts is the total number of attempts, including the first one.
	Attempts int
	// Delay is the wait between attempts.
	Delay time.Duration
	// Scale multiplies the delay by the attempt number when set, so
	// attempt 2 waits 2×Delay, attempt 3 waits 3×Delay and so on.
	Scale bool
	// Name identifies the operation in logs.
	Name string
}

// Do runs op until it succeeds or the attempt budget is exhausted. The
// error of the final attempt is returned. Context cancellation aborts the
// wait between attempts.
func Do(ctx context.Context, opts Options, op func(ctx context.Context) error) error {
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}

	var err error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if attempt == opts.Attempts {
			break
		}

		delay := opts.Delay
		if opts.Scale {
			delay = opts.Delay * time.Duration(attempt)
		}
		slog.WarnContext(
			ctx, "operation failed, retrying",
			"op", opts.Name,
			"attempt", attempt,
			"max_attempts", opts.Attempts,
			"delay", delay,
			"err", err,
		)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s: gave up after %d attempts: %w", opts.Name, opts.Attempts, err)
}
