package cache

import (
	"sync"
	"time"
)

// =============================================================================
// Bounded LRU with O(1) eviction (doubly linked list + map)
// =============================================================================

type lruNode[V any] struct {
	key       string
	value     V
	expiresAt time.Time // zero means no expiry
	prev      *lruNode[V]
	next      *lruNode[V]
}

// LRUConfig configures an LRU.
type LRUConfig struct {
	MaxEntries int           // default 1000
	TTL        time.Duration // 0 disables expiry
}

// DefaultLRUConfig returns the sizing used for classification results.
func DefaultLRUConfig() *LRUConfig {
	return &LRUConfig{
		MaxEntries: 1000,
		TTL:        0,
	}
}

// LRU is a size-bounded, concurrency-safe cache. The least recently used
// entry is evicted when a new key would exceed MaxEntries.
type LRU[V any] struct {
	mu         sync.Mutex
	items      map[string]*lruNode[V]
	head       *lruNode[V] // dummy, most recent follows
	tail       *lruNode[V] // dummy, least recent precedes
	maxEntries int
	ttl        time.Duration
	now        func() time.Time

	hits      int64
	misses    int64
	evictions int64
}

// NewLRU creates an LRU. A nil config uses DefaultLRUConfig.
func NewLRU[V any](config *LRUConfig) *LRU[V] {
	if config == nil {
		config = DefaultLRUConfig()
	}
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultLRUConfig().MaxEntries
	}

	head := &lruNode[V]{}
	tail := &lruNode[V]{}
	head.next = tail
	tail.prev = head

	return &LRU[V]{
		items:      make(map[string]*lruNode[V], maxEntries),
		head:       head,
		tail:       tail,
		maxEntries: maxEntries,
		ttl:        config.TTL,
		now:        time.Now,
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	node, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if !node.expiresAt.IsZero() && c.now().After(node.expiresAt) {
		c.unlink(node)
		delete(c.items, key)
		c.misses++
		return zero, false
	}

	c.hits++
	c.moveToFront(node)
	return node.value, true
}

// Set inserts or replaces key.
func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}

	if node, ok := c.items[key]; ok {
		node.value = value
		node.expiresAt = expiresAt
		c.moveToFront(node)
		return
	}

	if len(c.items) >= c.maxEntries {
		c.evictOldest()
	}

	node := &lruNode[V]{key: key, value: value, expiresAt: expiresAt}
	c.pushFront(node)
	c.items[key] = node
}

// Delete removes key if present.
func (c *LRU[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if node, ok := c.items[key]; ok {
		c.unlink(node)
		delete(c.items, key)
	}
}

// Len returns the number of stored entries, expired ones included until touched.
func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// LRUStats contains cache statistics
type LRUStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evictions  int64   `json:"evictions"`
	HitRate    float64 `json:"hit_rate"`
}

// Stats returns a snapshot of counters.
func (c *LRU[V]) Stats() LRUStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	hitRate := float64(0)
	if total := c.hits + c.misses; total > 0 {
		hitRate = float64(c.hits) / float64(total)
	}
	return LRUStats{
		Entries:    len(c.items),
		MaxEntries: c.maxEntries,
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		HitRate:    hitRate,
	}
}

// =============================================================================
// List operations (lock held)
// =============================================================================

func (c *LRU[V]) pushFront(node *lruNode[V]) {
	node.next = c.head.next
	node.prev = c.head
	c.head.next.prev = node
	c.head.next = node
}

func (c *LRU[V]) unlink(node *lruNode[V]) {
	node.prev.next = node.next
	node.next.prev = node.prev
}

func (c *LRU[V]) moveToFront(node *lruNode[V]) {
	c.unlink(node)
	c.pushFront(node)
}

func (c *LRU[V]) evictOldest() {
	oldest := c.tail.prev
	if oldest == c.head {
		return
	}
	c.unlink(oldest)
	delete(c.items, oldest.key)
	c.evictions++
}
