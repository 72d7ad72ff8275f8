// Package pacer implements frame pacing policies.
package pacer

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultPeriod paces frames at 10 fps.
const DefaultPeriod = 100 * time.Millisecond

// Limiter spaces emissions at least one period apart. The first Wait
// returns immediately; each later Wait suspends until a period has passed
// since the previous one returned. Waiting is a timer select on the
// caller's goroutine.
type Limiter struct {
	limiter *rate.Limiter
	period  time.Duration
}

// NewLimiter creates a Limiter for period. A non-positive period never waits.
func NewLimiter(period time.Duration) *Limiter {
	limit := rate.Inf
	if period > 0 {
		limit = rate.Every(period)
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, 1),
		period:  period,
	}
}

// Wait implements ports.Pacer. It returns only ctx.Err() on failure, even
// when the next slot lies past the ctx deadline.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		if ctx.Err() == nil {
			<-ctx.Done()
		}
		return ctx.Err()
	}
	return nil
}

// Period returns the minimum spacing between emissions.
func (l *Limiter) Period() time.Duration {
	return l.period
}

// Noop never waits. It makes frame output deterministic and unthrottled.
type Noop struct{}

// Wait implements ports.Pacer. It only reports cancellation.
func (Noop) Wait(ctx context.Context) error {
	return ctx.Err()
}
