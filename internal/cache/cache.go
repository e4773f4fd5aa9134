// Package cache provides an in-memory TTL cache used for event
// deduplication on the ingest path and for short-lived lookup results.
package cache

import (
	"sync"
	"time"
)

// Entry represents a cached item with metadata
type Entry struct {
	Value     interface{} `json:"value"`
	ExpiresAt time.Time   `json:"expires_at"`
	CreatedAt time.Time   `json:"created_at"`
	HitCount  int         `json:"hit_count"`
}

// IsExpired checks if the cache entry has expired
func (e *Entry) IsExpired() bool {
	return time.Now().After(e.ExpiresAt)
}

// TTLCache is a bounded cache whose entries expire after a per-entry TTL
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	maxSize int
}

// New creates a new TTL cache holding at most maxSize entries
func New(maxSize int) *TTLCache {
	if maxSize <= 0 {
		maxSize = 100 // Default max entries
	}
	return &TTLCache{
		entries: make(map[string]*Entry),
		maxSize: maxSize,
	}
}

// Get retrieves a value from the cache
func (c *TTLCache) Get(key string) (interface{}, bool) {
	c.mu.RLock()
	entry, exists := c.entries[key]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if entry.IsExpired() {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}

	// Update hit count (needs write lock)
	c.mu.Lock()
	entry.HitCount++
	c.mu.Unlock()

	return entry.Value, true
}

// Set stores a value in the cache with TTL
func (c *TTLCache) Set(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value, ttl)
}

// Add stores a value only if the key is absent or expired. It returns
// true when the value was stored, false when a live entry already exists.
func (c *TTLCache) Add(key string, value interface{}, ttl time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.entries[key]; exists && !entry.IsExpired() {
		return false
	}

	c.setLocked(key, value, ttl)
	return true
}

func (c *TTLCache) setLocked(key string, value interface{}, ttl time.Duration) {
	// Evict expired entries if at capacity
	if len(c.entries) >= c.maxSize {
		c.evictExpiredLocked()
	}

	// If still at capacity, evict the oldest entry
	if len(c.entries) >= c.maxSize {
		c.evictOldestLocked()
	}

	c.entries[key] = &Entry{
		Value:     value,
		ExpiresAt: time.Now().Add(ttl),
		CreatedAt: time.Now(),
		HitCount:  0,
	}
}

// Delete removes a specific key from the cache
func (c *TTLCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries from the cache
func (c *TTLCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// Size returns the number of entries in the cache
func (c *TTLCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache statistics
func (c *TTLCache) Stats() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	totalHits := 0
	expiredCount := 0
	now := time.Now()

	for _, entry := range c.entries {
		totalHits += entry.HitCount
		if now.After(entry.ExpiresAt) {
			expiredCount++
		}
	}

	return map[string]interface{}{
		"size":          len(c.entries),
		"max_size":      c.maxSize,
		"total_hits":    totalHits,
		"expired_count": expiredCount,
	}
}

// evictExpiredLocked removes all expired entries (must hold write lock)
func (c *TTLCache) evictExpiredLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.ExpiresAt) {
			delete(c.entries, key)
		}
	}
}

// evictOldestLocked removes the oldest entry (must hold write lock)
func (c *TTLCache) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true

	for key, entry := range c.entries {
		if first || entry.CreatedAt.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.CreatedAt
			first = false
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}

// Deduper tracks recently seen event IDs so the ingest path can drop
// redelivered events. Bus delivery is at-least-once, so the same event
// may arrive more than once within the dedupe window.
type Deduper struct {
	cache  *TTLCache
	window time.Duration
}

// NewDeduper creates a deduper remembering IDs for the given window
func NewDeduper(window time.Duration, maxSize int) *Deduper {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Deduper{
		cache:  New(maxSize),
		window: window,
	}
}

// Seen marks the ID as observed and reports whether it had already been
// observed within the dedupe window.
func (d *Deduper) Seen(id string) bool {
	if id == "" {
		return false
	}
	return !d.cache.Add(id, struct{}{}, d.window)
}

// Size returns the number of IDs currently tracked
func (d *Deduper) Size() int {
	return d.cache.Size()
}
