package keeper

import (
	"context"
	"time"
)

// pollRetry runs fn with doubling backoff between attempts, reporting how
// many attempts were made. Sleeps are capped at the poll interval: once a
// retry would wait past the next tick, the tick's fresh poll supersedes it
// anyway.
func pollRetry(ctx context.Context, cfg Config, fn func(context.Context) error) (int, error) {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 100 * time.Millisecond
	}

	attempts := 0
	for {
		attempts++
		err := fn(ctx)
		if err == nil {
			return attempts, nil
		}
		if attempts > retries {
			return attempts, err
		}

		delay := backoff
		if cfg.Interval > 0 && delay > cfg.Interval {
			delay = cfg.Interval
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}
