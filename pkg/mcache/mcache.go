// Copyright 2025, Ritcher contributors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE.md file.

// Package mcache is a short-TTL origin manifest cache.
//
// It deduplicates identical origin fetches across concurrent viewers.
// The 2-second default TTL is short enough to stay close to the live
// edge while eliminating thundering-herd requests to the origin CDN.
// Concurrent misses for the same URL each fetch — coalescing beyond
// the TTL is not required because the TTL is tiny.
package mcache

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultTTL is the default time a cached manifest stays fresh.
const DefaultTTL = 2 * time.Second

type entry struct {
	body      string
	fetchedAt time.Time
}

// Cache is a thread-safe manifest cache with TTL-based invalidation.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
}

// New returns a cache with the given TTL. Zero or negative means DefaultTTL.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
	}
}

// Get returns the cached body for url if a fresh entry exists.
// Stale entries are evicted on read.
func (c *Cache) Get(url string) (string, bool) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()
	if ok && time.Since(e.fetchedAt) < c.ttl {
		slog.Debug("manifest cache hit", "url", url)
		return e.body, true
	}
	if ok {
		c.mu.Lock()
		// Re-check under the write lock — a concurrent Insert may have
		// refreshed the entry.
		if e2, still := c.entries[url]; still && time.Since(e2.fetchedAt) >= c.ttl {
			delete(c.entries, url)
		}
		c.mu.Unlock()
	}
	slog.Debug("manifest cache miss", "url", url)
	return "", false
}

// Insert stores or overwrites the body for url.
func (c *Cache) Insert(url, body string) {
	c.mu.Lock()
	c.entries[url] = entry{body: body, fetchedAt: time.Now()}
	c.mu.Unlock()
}
