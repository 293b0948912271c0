// Package cache provides the abstract key-value cache contract used by
// the catalog, search, and compatibility layers, plus the default
// in-process implementation. The backing store is an implementation
// choice; callers depend only on the Cache interface.
package cache

import (
	"strings"
	"sync"
	"time"
)

// Cache is a thread-safe TTL key-value store. Writes are idempotent:
// values are pure functions of the key, so last-writer-wins is fine.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Delete(key string)
	// Clear removes all entries whose key starts with pattern; an empty
	// pattern removes everything.
	Clear(pattern string)
}

// Memory is the in-process Cache backed by a map with background
// eviction. Call Close to stop the eviction goroutine.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]entry
	done    chan struct{}
	once    sync.Once
}

type entry struct {
	value     any
	expiresAt time.Time
}

// NewMemory creates an in-process cache and starts its eviction loop.
func NewMemory() *Memory {
	c := &Memory{
		entries: make(map[string]entry),
		done:    make(chan struct{}),
	}
	go c.evictLoop()
	return c
}

// Get returns the cached value and true if a live entry exists.
func (c *Memory) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

// Set stores a value with its own TTL.
func (c *Memory) Set(key string, value any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
}

// Delete removes a single entry.
func (c *Memory) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries matching the key prefix.
func (c *Memory) Clear(pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if pattern == "" || strings.HasPrefix(k, pattern) {
			delete(c.entries, k)
		}
	}
}

// Len returns the number of live entries. Test helper.
func (c *Memory) Len() int {
	now := time.Now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n
}

// Close stops the background eviction goroutine. Idempotent.
func (c *Memory) Close() {
	c.once.Do(func() { close(c.done) })
}

// evictLoop removes expired entries every minute.
func (c *Memory) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *Memory) evictExpired() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
		}
	}
}
