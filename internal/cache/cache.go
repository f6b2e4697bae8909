// Package cache holds recently used tasks in memory so the store can skip
// backing-store reads.
package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"github.com/abatilo/tasktree/internal/config"
	"github.com/abatilo/tasktree/internal/task"
)

// Cache is the narrow surface the store depends on.
type Cache interface {
	Get(path string) (*task.Task, bool)
	Set(t *task.Task)
	Delete(path string)
	Clear()
	Len() int
}

// Stats reports cache activity since creation or the last Clear.
type Stats struct {
	Hits        uint64
	Misses      uint64
	Evictions   uint64
	Expirations uint64
}

type entry struct {
	task    *task.Task
	ttl     time.Duration
	expires time.Time
}

// LRU is a size-bounded cache whose entries live longer the more they are read.
// Each hit extends an entry's TTL by a quarter of the base TTL, up to the max.
type LRU struct {
	mu      sync.Mutex
	lru     *simplelru.LRU[string, *entry]
	size    int
	baseTTL time.Duration
	maxTTL  time.Duration
	now     func() time.Time
	stats   Stats
}

var _ Cache = (*LRU)(nil)

// Option configures an LRU.
type Option func(*LRU)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *LRU) {
		c.now = now
	}
}

// New creates an LRU cache from the cache configuration.
func New(cfg config.CacheConfig, opts ...Option) (*LRU, error) {
	if cfg.BaseTTL <= 0 || cfg.MaxTTL < cfg.BaseTTL {
		return nil, fmt.Errorf("invalid cache ttl: base %s, max %s", cfg.BaseTTL, cfg.MaxTTL)
	}
	l, err := simplelru.NewLRU[string, *entry](cfg.MaxEntries, nil)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	c := &LRU{
		lru:     l,
		size:    cfg.MaxEntries,
		baseTTL: cfg.BaseTTL,
		maxTTL:  cfg.MaxTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get returns a copy of the cached task. An expired entry is evicted and
// reported as a miss.
func (c *LRU) Get(path string) (*task.Task, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(path)
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	now := c.now()
	if !now.Before(e.expires) {
		c.lru.Remove(path)
		c.stats.Misses++
		c.stats.Expirations++
		return nil, false
	}

	c.stats.Hits++
	e.ttl = min(e.ttl+c.baseTTL/4, c.maxTTL)
	e.expires = now.Add(e.ttl)
	return e.task.Clone(), true
}

// Set stores a copy of the task with a fresh base TTL. When the cache is full,
// expired entries are pruned before the least recently used one is evicted.
func (c *LRU) Set(t *task.Task) {
	if t == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lru.Contains(t.Path) && c.lru.Len() >= c.size {
		c.pruneLocked()
	}
	evicted := c.lru.Add(t.Path, &entry{
		task:    t.Clone(),
		ttl:     c.baseTTL,
		expires: c.now().Add(c.baseTTL),
	})
	if evicted {
		c.stats.Evictions++
	}
}

// Delete drops the entry for path, if any.
func (c *LRU) Delete(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(path)
}

// Clear drops every entry and resets the stats.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.stats = Stats{}
}

// Len returns the number of entries, expired ones included until pruned.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Prune evicts every expired entry and returns how many were removed.
func (c *LRU) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked()
}

func (c *LRU) pruneLocked() int {
	now := c.now()
	removed := 0
	for _, k := range c.lru.Keys() {
		e, ok := c.lru.Peek(k)
		if ok && !now.Before(e.expires) {
			c.lru.Remove(k)
			removed++
		}
	}
	c.stats.Expirations += uint64(removed)
	return removed
}

// Stats returns a snapshot of the counters.
func (c *LRU) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
