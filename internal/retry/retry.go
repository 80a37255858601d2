// Package retry runs an operation again after failures, a bounded number of
// times. It is the only place where failures of network-bound work are
// adjudicated; callers below it report failure through plain errors.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Do calls op and, while it fails and retries remain, waits delay and calls it
// again with one retry fewer. After the last failure the error is returned
// unchanged. Retries are logged at warn level when warnOnly is set and at
// error level otherwise.
func Do[T any](ctx context.Context, log zerolog.Logger, op func(context.Context) (T, error), retries int, delay time.Duration, warnOnly bool) (T, error) {
	v, err := op(ctx)
	if err == nil {
		return v, nil
	}
	if retries <= 0 || ctx.Err() != nil {
		return v, err
	}

	ev := log.Error()
	if warnOnly {
		ev = log.Warn()
	}
	ev.Err(err).Int("retries_left", retries).Dur("delay", delay).Msg("retrying")

	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return v, err
		case <-t.C:
		}
	}
	return Do(ctx, log, op, retries-1, delay, warnOnly)
}
