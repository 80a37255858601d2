// Package ratelimit spaces out calls to a single model backend.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between recorded calls. It tracks a
// single "last call" timestamp, so it is meant for one logical stream of
// requests; the mutex only guards against accidental sharing.
type Limiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	last        time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New returns a Limiter that keeps at least minInterval between calls.
// A zero interval never waits.
func New(minInterval time.Duration) *Limiter {
	return &Limiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       sleepCtx,
	}
}

// MinInterval returns the configured spacing.
func (l *Limiter) MinInterval() time.Duration {
	return l.minInterval
}

// Wait blocks until minInterval has elapsed since the last recorded call,
// or until ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	var remaining time.Duration
	if !l.last.IsZero() {
		remaining = l.minInterval - l.now().Sub(l.last)
	}
	l.mu.Unlock()

	if remaining <= 0 {
		return ctx.Err()
	}
	return l.sleep(ctx, remaining)
}

// RecordCall stamps now as the time of the last call.
func (l *Limiter) RecordCall() {
	l.mu.Lock()
	l.last = l.now()
	l.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
