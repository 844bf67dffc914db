// Package ratelimit paces calls to rate-limited upstream APIs.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// =============================================================================
// Interval Limiter
// 구조: Semaphore (in-flight cap) → rate.Limiter (admission interval)
// =============================================================================

// IntervalConfig configures an IntervalLimiter.
type IntervalConfig struct {
	Interval    time.Duration // minimum spacing between admissions (default 2.1s)
	Concurrency int64         // in-flight cap (default 1)
}

// DefaultIntervalConfig matches the free tier of the completion endpoint.
func DefaultIntervalConfig() *IntervalConfig {
	return &IntervalConfig{
		Interval:    2100 * time.Millisecond,
		Concurrency: 1,
	}
}

// IntervalLimiter admits at most Concurrency callers at a time and no more
// than one admission per Interval.
type IntervalLimiter struct {
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	config  *IntervalConfig
}

// NewIntervalLimiter creates a limiter. A nil config uses the defaults.
func NewIntervalLimiter(config *IntervalConfig) *IntervalLimiter {
	if config == nil {
		config = DefaultIntervalConfig()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}

	limit := rate.Inf
	if config.Interval > 0 {
		limit = rate.Every(config.Interval)
	}

	return &IntervalLimiter{
		sem:     semaphore.NewWeighted(config.Concurrency),
		limiter: rate.NewLimiter(limit, 1),
		config:  config,
	}
}

// Acquire blocks until the caller is admitted or ctx ends. The returned
// release must be called once the guarded work finishes.
func (l *IntervalLimiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if err := l.limiter.Wait(ctx); err != nil {
		l.sem.Release(1)
		return nil, err
	}
	return func() { l.sem.Release(1) }, nil
}

// Interval returns the configured admission interval.
func (l *IntervalLimiter) Interval() time.Duration {
	return l.config.Interval
}
