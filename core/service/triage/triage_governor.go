package triage

import (
	"context"
	"fmt"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/metrics"
	"triage_server/pkg/ratelimit"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Governor paces classification through an IntervalLimiter and memoizes
// results. Each Governor has its own rate budget; share one per upstream key.
type Governor struct {
	classifier *Classifier
	limiter    *ratelimit.IntervalLimiter
	cache      out.ResultCache
	metrics    *metrics.TriageMetrics
	group      singleflight.Group
	log        zerolog.Logger
}

// NewGovernor creates a governor. cache may be nil to disable memoization.
func NewGovernor(classifier *Classifier, limiter *ratelimit.IntervalLimiter, cache out.ResultCache, m *metrics.TriageMetrics, log zerolog.Logger) *Governor {
	if limiter == nil {
		limiter = ratelimit.NewIntervalLimiter(nil)
	}
	if m == nil {
		m = classifier.metrics
	}
	return &Governor{
		classifier: classifier,
		limiter:    limiter,
		cache:      cache,
		metrics:    m,
		log:        log.With().Str("component", "triage_governor").Logger(),
	}
}

// Classify returns the cached result for msg or computes one under the rate
// limit. If ctx ends while waiting for admission, the rule-only fallback is
// returned without calling the completion endpoint.
func (g *Governor) Classify(ctx context.Context, msg *domain.InboundMessage) *domain.ClassificationResult {
	key := msg.CacheKey()

	if g.cache != nil {
		if res, ok := g.cache.Get(ctx, key); ok {
			g.metrics.RecordCacheHit()
			return res
		}
	}

	v, _, _ := g.group.Do(key, func() (interface{}, error) {
		// a concurrent caller may have stored it while we waited on the group
		if g.cache != nil {
			if res, ok := g.cache.Get(ctx, key); ok {
				return res, nil
			}
		}

		release, err := g.limiter.Acquire(ctx)
		if err != nil {
			g.log.Debug().Err(err).Str("message_id", msg.ID).Msg("admission cancelled, using fallback")
			return g.classifier.Fallback(msg), nil
		}
		defer release()

		res := g.classifier.Classify(ctx, msg)
		if g.cache != nil && res.Source != domain.SourceFallback {
			g.cache.Set(ctx, key, res)
		}
		return res, nil
	})
	return v.(*domain.ClassificationResult)
}

// ProcessBatch classifies msgs sequentially and returns results in input
// order. onProgress, when set, is called after every message. A panic while
// handling one message yields that message's fallback result.
func (g *Governor) ProcessBatch(ctx context.Context, msgs []*domain.InboundMessage, onProgress func(done, total int)) []*domain.ClassificationResult {
	results := make([]*domain.ClassificationResult, len(msgs))
	for i, msg := range msgs {
		results[i] = g.classifyIsolated(ctx, msg)
		if onProgress != nil {
			onProgress(i+1, len(msgs))
		}
	}
	return results
}

func (g *Governor) classifyIsolated(ctx context.Context, msg *domain.InboundMessage) (res *domain.ClassificationResult) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error().Str("panic", fmt.Sprint(r)).Str("message_id", msg.ID).Msg("batch item panicked")
			res = g.classifier.Fallback(msg)
		}
	}()
	return g.Classify(ctx, msg)
}

// IsMeetingEmail reports whether the message is about a meeting.
func (g *Governor) IsMeetingEmail(subject, body string) bool {
	return g.classifier.Rules().IsMeetingEmail(subject, body)
}
