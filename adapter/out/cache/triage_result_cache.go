// Package cache implements out.ResultCache with an in-process LRU in front of
// an optional Redis tier.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/pkg/cache"

	"github.com/rs/zerolog"
)

const redisPrefix = "triage:result:"

// ResultCacheConfig sizes both tiers.
type ResultCacheConfig struct {
	MaxEntries int           // L1 bound (default 1000)
	TTL        time.Duration // applies to both tiers; 0 keeps entries until evicted
}

// ResultCache is the two-level classification result cache.
type ResultCache struct {
	l1  *cache.LRU[*domain.ClassificationResult]
	l2  *cache.RedisCache
	ttl time.Duration
	log zerolog.Logger
}

var _ out.ResultCache = (*ResultCache)(nil)

// NewResultCache creates the cache. l2 may be nil for an in-process only cache.
func NewResultCache(cfg *ResultCacheConfig, l2 *cache.RedisCache, log zerolog.Logger) *ResultCache {
	if cfg == nil {
		cfg = &ResultCacheConfig{}
	}
	return &ResultCache{
		l1:  cache.NewLRU[*domain.ClassificationResult](&cache.LRUConfig{MaxEntries: cfg.MaxEntries, TTL: cfg.TTL}),
		l2:  l2,
		ttl: cfg.TTL,
		log: log.With().Str("component", "result_cache").Logger(),
	}
}

// Get checks L1 then L2. An L2 hit is promoted into L1. Redis errors count as
// misses.
func (c *ResultCache) Get(ctx context.Context, key string) (*domain.ClassificationResult, bool) {
	if res, ok := c.l1.Get(key); ok {
		return clone(res), true
	}
	if c.l2 == nil {
		return nil, false
	}

	var res domain.ClassificationResult
	found, err := c.l2.GetJSON(ctx, redisKey(key), &res)
	if err != nil {
		c.log.Warn().Err(err).Msg("redis get failed")
		return nil, false
	}
	if !found {
		return nil, false
	}
	c.l1.Set(key, clone(&res))
	return &res, true
}

// Set stores into both tiers.
func (c *ResultCache) Set(ctx context.Context, key string, res *domain.ClassificationResult) {
	if res == nil {
		return
	}
	c.l1.Set(key, clone(res))
	if c.l2 == nil {
		return
	}
	if err := c.l2.SetJSON(ctx, redisKey(key), res, c.ttl); err != nil {
		c.log.Warn().Err(err).Msg("redis set failed")
	}
}

// Stats reports L1 counters.
func (c *ResultCache) Stats() cache.LRUStats {
	return c.l1.Stats()
}

func redisKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return redisPrefix + hex.EncodeToString(sum[:])
}

func clone(r *domain.ClassificationResult) *domain.ClassificationResult {
	cp := *r
	cp.Action = cloneStr(r.Action)
	cp.DueDate = cloneStr(r.DueDate)
	cp.DueTime = cloneStr(r.DueTime)
	return &cp
}

func cloneStr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
