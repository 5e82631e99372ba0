// Watchpost - Continuous Sensor Monitoring and Analysis Pipeline
// Copyright 2026 Watchpost Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watchpost/watchpost

package analysis

import (
	"container/list"
	"sync"
	"time"

	"github.com/watchpost/watchpost/internal/models"
)

// ResultCache is a bounded LRU of analysis results keyed by request
// fingerprint, with TTL expiry. Fixed capacity with oldest-evicted keeps
// memory flat regardless of uptime.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	order    *list.List // front = most recently used
}

type cacheEntry struct {
	key      string
	result   *models.AnalysisResult
	storedAt time.Time
}

// NewResultCache creates a cache with the given capacity and TTL.
func NewResultCache(capacity int, ttl time.Duration) *ResultCache {
	if capacity < 1 {
		capacity = 1
	}
	return &ResultCache{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached result for key if present and unexpired.
func (c *ResultCache) Get(key string) (*models.AnalysisResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return nil, false
	}

	entry := el.Value.(*cacheEntry)
	if c.ttl > 0 && time.Since(entry.storedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.items, key)
		return nil, false
	}

	c.order.MoveToFront(el)
	return entry.result, true
}

// Add stores a result under key, evicting the least recently used entry
// when at capacity.
func (c *ResultCache) Add(key string, result *models.AnalysisResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = result
		entry.storedAt = time.Now()
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}

	el := c.order.PushFront(&cacheEntry{
		key:      key,
		result:   result,
		storedAt: time.Now(),
	})
	c.items[key] = el
}

// Len returns the number of cached entries.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
