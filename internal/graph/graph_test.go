package graph

import (
	"sync"
	"testing"
)

func TestBlacklistAddIsCaseInsensitive(t *testing.T) {
	b := NewBlacklist()
	if !b.Add(Edge{From: "Dog", To: "Wolf"}) {
		t.Fatal("first Add should report a new edge")
	}
	if b.Add(Edge{From: "dog", To: "WOLF"}) {
		t.Error("Add of the same edge in another case should report false")
	}
	if !b.Has(Edge{From: "DOG", To: "wolf"}) {
		t.Error("Has should ignore case")
	}
	if b.Has(Edge{From: "Wolf", To: "Dog"}) {
		t.Error("edges are directed")
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
}

func TestBlacklistEdgesReturnsCopy(t *testing.T) {
	b := NewBlacklist(Edge{From: "A", To: "B"}, Edge{From: "B", To: "C"})
	edges := b.Edges()
	if len(edges) != 2 || edges[0] != (Edge{From: "A", To: "B"}) {
		t.Fatalf("Edges() = %v", edges)
	}
	edges[0].From = "mutated"
	if b.Edges()[0].From != "A" {
		t.Error("Edges() should return a copy")
	}
}

func TestNilBlacklist(t *testing.T) {
	var b *Blacklist
	if b.Has(Edge{From: "A", To: "B"}) {
		t.Error("nil blacklist should be empty")
	}
	if b.Len() != 0 || b.Edges() != nil {
		t.Error("nil blacklist should report no edges")
	}
}

func TestBlacklistConcurrentAccess(t *testing.T) {
	b := NewBlacklist()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Add(Edge{From: "A", To: string(rune('a' + i))})
			_ = b.Has(Edge{From: "A", To: "a"})
			_ = b.Edges()
		}()
	}
	wg.Wait()
	if b.Len() != 20 {
		t.Errorf("Len() = %d, want 20", b.Len())
	}
}

func TestEdgeString(t *testing.T) {
	if got := (Edge{From: "A", To: "B"}).String(); got != "A → B" {
		t.Errorf("String() = %q", got)
	}
}
