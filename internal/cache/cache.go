// Package cache holds the session-scoped canonical title cache.
//
// Keys are lower-cased input titles. Entries are never evicted or replaced:
// the first answer recorded for a key wins for the rest of the session.
package cache

import (
	"strings"
	"sync"
	"time"

	"github.com/latebit/wikichain/internal/metrics"
)

// Entry is a cached title resolution.
type Entry struct {
	Canonical string // empty when the page does not exist
	Exists    bool
	CachedAt  time.Time
}

// Redirect is a cached redirect lookup.
type Redirect struct {
	IsRedirect bool
	Target     string
	CachedAt   time.Time
}

// Cache maps lower-cased titles to their resolutions. It is safe for
// concurrent use.
type Cache struct {
	mu        sync.RWMutex
	titles    map[string]Entry
	redirects map[string]Redirect
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{
		titles:    make(map[string]Entry),
		redirects: make(map[string]Redirect),
	}
}

// Key returns the cache key for title.
func Key(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Get returns the cached resolution of title.
func (c *Cache) Get(title string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.titles[Key(title)]
	c.mu.RUnlock()
	if ok {
		metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
	}
	return e, ok
}

// Put records the resolution of title unless one is already cached.
func (c *Cache) Put(title, canonical string, exists bool) {
	k := Key(title)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.titles[k]; ok {
		return
	}
	if !exists {
		canonical = ""
	}
	c.titles[k] = Entry{Canonical: canonical, Exists: exists, CachedAt: time.Now().UTC()}
}

// GetRedirect returns the cached redirect lookup of title.
func (c *Cache) GetRedirect(title string) (Redirect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.redirects[Key(title)]
	return r, ok
}

// PutRedirect records the redirect lookup of title unless one is already cached.
func (c *Cache) PutRedirect(title string, isRedirect bool, target string) {
	k := Key(title)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.redirects[k]; ok {
		return
	}
	if !isRedirect {
		target = ""
	}
	c.redirects[k] = Redirect{IsRedirect: isRedirect, Target: target, CachedAt: time.Now().UTC()}
}

// Len returns the number of cached title resolutions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.titles)
}
