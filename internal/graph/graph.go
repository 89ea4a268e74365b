// Package graph implements the bidirectional frontier search over the wiki
// link graph and the edge blacklist shared across retries.
package graph

import (
	"strings"
	"sync"
)

// Key returns the identity of a title: canonical titles that differ only in
// case denote the same node.
func Key(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Edge represents a directed link from one article to another.
type Edge struct {
	From string
	To   string
}

func (e Edge) String() string {
	return e.From + " → " + e.To
}

func (e Edge) key() Edge {
	return Edge{From: Key(e.From), To: Key(e.To)}
}

// Blacklist is an append-only set of edges excluded from traversal. Edges
// are compared case-insensitively. It is safe for concurrent use.
type Blacklist struct {
	mu    sync.RWMutex
	set   map[Edge]struct{}
	edges []Edge
}

// NewBlacklist creates a blacklist seeded with edges.
func NewBlacklist(edges ...Edge) *Blacklist {
	b := &Blacklist{set: make(map[Edge]struct{})}
	for _, e := range edges {
		b.Add(e)
	}
	return b
}

// Add inserts e and reports whether it was not already present.
func (b *Blacklist) Add(e Edge) bool {
	k := e.key()
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.set[k]; exists {
		return false
	}
	b.set[k] = struct{}{}
	b.edges = append(b.edges, e)
	return true
}

// Has reports whether e is blacklisted. A nil blacklist is empty.
func (b *Blacklist) Has(e Edge) bool {
	if b == nil {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.set[e.key()]
	return ok
}

// Len returns the number of blacklisted edges.
func (b *Blacklist) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.edges)
}

// Edges returns a copy of the blacklisted edges in insertion order.
func (b *Blacklist) Edges() []Edge {
	if b == nil {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	edges := make([]Edge, len(b.edges))
	copy(edges, b.edges)
	return edges
}
