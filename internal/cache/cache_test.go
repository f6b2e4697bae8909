//nolint:testpackage // Tests require internal access for thorough testing
package cache

import (
	"testing"
	"time"

	"github.com/abatilo/tasktree/internal/config"
	"github.com/abatilo/tasktree/internal/task"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(t *testing.T, size int) (*LRU, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	c, err := New(config.CacheConfig{
		MaxEntries: size,
		BaseTTL:    time.Minute,
		MaxTTL:     2 * time.Minute,
	}, WithClock(clock.now))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c, clock
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.CacheConfig
	}{
		{"zero size", config.CacheConfig{MaxEntries: 0, BaseTTL: time.Second, MaxTTL: time.Second}},
		{"zero ttl", config.CacheConfig{MaxEntries: 1, BaseTTL: 0, MaxTTL: time.Second}},
		{"max below base", config.CacheConfig{MaxEntries: 1, BaseTTL: time.Minute, MaxTTL: time.Second}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestGetReturnsCopy(t *testing.T) {
	c, _ := newTestCache(t, 10)
	orig := &task.Task{Path: "a", Name: "A", Dependencies: []string{"b"}}
	c.Set(orig)

	// Mutating the original after Set must not leak into the cache.
	orig.Name = "changed"

	got, ok := c.Get("a")
	if !ok {
		t.Fatal("Get(a) missed")
	}
	if got.Name != "A" {
		t.Errorf("Get(a).Name = %q, want A", got.Name)
	}

	got.Dependencies[0] = "x"
	again, _ := c.Get("a")
	if again.Dependencies[0] != "b" {
		t.Errorf("cached dependencies mutated through returned copy: %v", again.Dependencies)
	}
}

func TestExpiry(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.Set(&task.Task{Path: "a"})

	clock.advance(59 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed before expiry")
	}

	// The hit extended the TTL to 75s from now.
	clock.advance(70 * time.Second)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed within extended TTL")
	}

	clock.advance(3 * time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatal("Get(a) hit after expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want expired entry evicted", c.Len())
	}

	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 || s.Expirations != 1 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestTTLCappedAtMax(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.Set(&task.Task{Path: "a"})
	for range 20 {
		c.Get("a")
	}

	clock.advance(2*time.Minute + time.Second)
	if _, ok := c.Get("a"); ok {
		t.Error("entry outlived MaxTTL")
	}
}

func TestLRUEviction(t *testing.T) {
	c, _ := newTestCache(t, 2)
	c.Set(&task.Task{Path: "a"})
	c.Set(&task.Task{Path: "b"})
	c.Get("a")
	c.Set(&task.Task{Path: "c"})

	if _, ok := c.Get("b"); ok {
		t.Error("least recently used entry b was not evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Error("recently used entry a was evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("Evictions = %d, want 1", c.Stats().Evictions)
	}
}

func TestSetPrunesExpiredBeforeEvicting(t *testing.T) {
	c, clock := newTestCache(t, 2)
	c.Set(&task.Task{Path: "old"})
	clock.advance(30 * time.Second)
	c.Set(&task.Task{Path: "fresh"})
	c.Get("old")

	// old now expires at 105s, fresh at 90s.
	clock.advance(65 * time.Second)
	c.Set(&task.Task{Path: "new"})

	if _, ok := c.Get("old"); !ok {
		t.Error("unexpired entry old was evicted instead of expired fresh")
	}
	if c.Stats().Evictions != 0 {
		t.Errorf("Evictions = %d, want 0", c.Stats().Evictions)
	}
}

func TestPrune(t *testing.T) {
	c, clock := newTestCache(t, 10)
	c.Set(&task.Task{Path: "a"})
	c.Set(&task.Task{Path: "b"})
	clock.advance(30 * time.Second)
	c.Set(&task.Task{Path: "c"})
	clock.advance(45 * time.Second)

	if n := c.Prune(); n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestDeleteAndClear(t *testing.T) {
	c, _ := newTestCache(t, 10)
	c.Set(&task.Task{Path: "a"})
	c.Set(&task.Task{Path: "b"})

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Error("Get(a) hit after Delete")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear", c.Len())
	}
	if c.Stats() != (Stats{}) {
		t.Errorf("Stats() = %+v after Clear", c.Stats())
	}
}
