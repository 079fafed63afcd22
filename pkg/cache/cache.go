// Package cache provides a generic, thread-safe TTL cache with per-entry
// expiry and background cleanup.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

func (e *entry[V]) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// TTL is a thread-safe cache whose entries each carry their own expiry. A
// background goroutine sweeps expired entries between accesses.
type TTL[V any] struct {
	mu              sync.RWMutex
	cleanupInterval time.Duration
	items           map[string]*entry[V]
	stats           *Statistics

	shutdown chan struct{}
	done     chan struct{}
}

// NewTTL creates a TTL cache. The cleanup goroutine stops when ctx is
// cancelled or Close is called.
func NewTTL[V any](ctx context.Context, cleanupInterval time.Duration) *TTL[V] {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	c := &TTL[V]{
		cleanupInterval: cleanupInterval,
		items:           make(map[string]*entry[V]),
		stats:           NewStatistics(),
		shutdown:        make(chan struct{}),
		done:            make(chan struct{}),
	}
	go c.cleanup(ctx)
	return c
}

// Get retrieves a value by key, treating expired entries as misses.
func (c *TTL[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	e, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		var zero V
		c.stats.Miss()
		return zero, false
	}

	if e.isExpired() {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Set may have renewed it.
		if current, still := c.items[key]; still && current.isExpired() {
			delete(c.items, key)
			c.stats.Eviction()
			c.stats.UpdateSize(int64(len(c.items)))
		}
		c.mu.Unlock()

		var zero V
		c.stats.Miss()
		return zero, false
	}

	c.stats.Hit()
	return e.value, true
}

// Set stores a value that expires after ttl. A non-positive ttl is rejected
// rather than stored forever.
func (c *TTL[V]) Set(key string, value V, ttl time.Duration) error {
	if key == "" {
		return fmt.Errorf("cache.Set: key cannot be empty")
	}
	if ttl <= 0 {
		return fmt.Errorf("cache.Set: ttl must be positive, got %v", ttl)
	}

	c.mu.Lock()
	c.items[key] = &entry[V]{key: key, value: value, expiresAt: time.Now().Add(ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.Set()
	c.stats.UpdateSize(int64(size))
	return nil
}

// Delete removes an entry by key, reporting whether it existed.
func (c *TTL[V]) Delete(key string) bool {
	c.mu.Lock()
	_, exists := c.items[key]
	if exists {
		delete(c.items, key)
	}
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.Delete()
		c.stats.UpdateSize(int64(size))
	}
	return exists
}

// Clear removes all entries.
func (c *TTL[V]) Clear() {
	c.mu.Lock()
	c.items = make(map[string]*entry[V])
	c.mu.Unlock()
	c.stats.UpdateSize(0)
}

// Size returns the current number of entries, expired stragglers included.
func (c *TTL[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats returns the cache statistics tracker.
func (c *TTL[V]) Stats() *Statistics {
	return c.stats
}

// Close stops the background cleanup goroutine.
func (c *TTL[V]) Close() error {
	select {
	case <-c.shutdown:
	default:
		close(c.shutdown)
	}

	select {
	case <-c.done:
		return nil
	case <-time.After(5 * time.Second):
		return fmt.Errorf("timeout waiting for cleanup goroutine to finish")
	}
}

func (c *TTL[V]) cleanup(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *TTL[V]) removeExpired() {
	now := time.Now()
	evicted := 0

	c.mu.Lock()
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
			evicted++
		}
	}
	size := len(c.items)
	c.mu.Unlock()

	if evicted > 0 {
		for i := 0; i < evicted; i++ {
			c.stats.Eviction()
		}
		c.stats.UpdateSize(int64(size))
	}
}
