// Package fetch implements the read/write data layer used by every screen:
// a shared TTL cache, cached queries, mutations and input debouncing.
package fetch

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"k8s.io/utils/clock"

	"github.com/tekrabyte/pos-sub000/internal/metrics"
)

// Entry is a cached payload and the time it was fetched.
type Entry struct {
	Key       string
	Value     json.RawMessage
	FetchedAt time.Time
}

// Cache holds normalized responses keyed by cache key. Entries are
// replaced on every successful fetch and removed only explicitly.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   clock.PassiveClock

	// group coalesces concurrent non-forced fetches of one key.
	group singleflight.Group
}

// NewCache creates an empty cache. A nil clock means the real clock.
func NewCache(clk clock.PassiveClock) *Cache {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Cache{
		entries: make(map[string]Entry),
		clock:   clk,
	}
}

// Lookup returns the value for key if it was stored less than ttl ago.
func (c *Cache) Lookup(key string, ttl time.Duration) (json.RawMessage, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	switch {
	case !ok:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return nil, false
	case c.clock.Since(e.FetchedAt) >= ttl:
		metrics.CacheLookups.WithLabelValues("stale").Inc()
		return nil, false
	default:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return e.Value, true
	}
}

// Store writes value under key stamped with the current time.
func (c *Cache) Store(key string, value json.RawMessage) Entry {
	e := Entry{Key: key, Value: value, FetchedAt: c.clock.Now()}

	c.mu.Lock()
	c.entries[key] = e
	n := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))
	return e
}

// Entry returns the raw entry for key regardless of age.
func (c *Cache) Entry(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Delete removes key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	n := len(c.entries)
	c.mu.Unlock()
	metrics.CacheEntries.Set(float64(n))
}

// Clear removes every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	metrics.CacheEntries.Set(0)
}

// ClearByPattern removes every key containing substr and returns how many
// were removed.
func (c *Cache) ClearByPattern(substr string) int {
	c.mu.Lock()
	removed := 0
	for key := range c.entries {
		if strings.Contains(key, substr) {
			delete(c.entries, key)
			removed++
		}
	}
	n := len(c.entries)
	c.mu.Unlock()

	metrics.CacheEntries.Set(float64(n))
	return removed
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cached keys in sorted order.
func (c *Cache) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}
