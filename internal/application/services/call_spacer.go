package services

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// IntervalSpacer spaces out distinct outbound calls so that consecutive calls
// are at least the configured delay apart. One spacer is shared by every
// caller of the same upstream.
type IntervalSpacer struct {
	limiter *rate.Limiter
	delay   time.Duration
}

// NewIntervalSpacer creates a spacer. A zero or negative delay disables spacing.
func NewIntervalSpacer(delay time.Duration) *IntervalSpacer {
	if delay <= 0 {
		return &IntervalSpacer{}
	}
	return &IntervalSpacer{
		limiter: rate.NewLimiter(rate.Every(delay), 1),
		delay:   delay,
	}
}

// Wait blocks until the next call may be dispatched or ctx is done.
func (s *IntervalSpacer) Wait(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	return s.limiter.Wait(ctx)
}

// Delay returns the configured spacing.
func (s *IntervalSpacer) Delay() time.Duration {
	return s.delay
}
