package metrics

import (
	"sync/atomic"
	"time"
)

// TriageMetrics counts classification outcomes by path.
type TriageMetrics struct {
	classified atomic.Int64
	ai         atomic.Int64
	rules      atomic.Int64
	fallback   atomic.Int64
	cacheHits  atomic.Int64
	aiErrors   atomic.Int64

	latency *LatencyTracker
}

// NewTriageMetrics creates a zeroed metrics set.
func NewTriageMetrics() *TriageMetrics {
	return &TriageMetrics{latency: NewLatencyTracker(1000)}
}

// RecordResult counts one computed result by source ("ai", "rules", "fallback").
func (m *TriageMetrics) RecordResult(source string, took time.Duration) {
	m.classified.Add(1)
	switch source {
	case "ai":
		m.ai.Add(1)
	case "rules":
		m.rules.Add(1)
	case "fallback":
		m.fallback.Add(1)
	}
	m.latency.Record(took)
}

// RecordCacheHit counts a result served from cache.
func (m *TriageMetrics) RecordCacheHit() {
	m.classified.Add(1)
	m.cacheHits.Add(1)
}

// RecordAIError counts a failed completion call.
func (m *TriageMetrics) RecordAIError() {
	m.aiErrors.Add(1)
}

// TriageSnapshot is the JSON form of TriageMetrics.
type TriageSnapshot struct {
	Classified int64        `json:"classified"`
	AI         int64        `json:"ai"`
	Rules      int64        `json:"rules"`
	Fallback   int64        `json:"fallback"`
	CacheHits  int64        `json:"cache_hits"`
	AIErrors   int64        `json:"ai_errors"`
	Latency    LatencyStats `json:"latency"`
}

// Snapshot returns current values.
func (m *TriageMetrics) Snapshot() TriageSnapshot {
	return TriageSnapshot{
		Classified: m.classified.Load(),
		AI:         m.ai.Load(),
		Rules:      m.rules.Load(),
		Fallback:   m.fallback.Load(),
		CacheHits:  m.cacheHits.Load(),
		AIErrors:   m.aiErrors.Load(),
		Latency:    m.latency.Stats(),
	}
}
