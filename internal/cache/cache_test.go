package cache

import (
	"fmt"
	"sync"
	"testing"
)

func TestPutAndGet(t *testing.T) {
	c := New()
	c.Put("canis familiaris", "Dog", true)

	entry, ok := c.Get("Canis Familiaris")
	if !ok {
		t.Fatal("expected cached entry for case-insensitive key")
	}
	if entry.Canonical != "Dog" {
		t.Errorf("canonical: got %q, want %q", entry.Canonical, "Dog")
	}
	if !entry.Exists {
		t.Error("exists: got false, want true")
	}
	if entry.CachedAt.IsZero() {
		t.Error("cached_at should not be zero")
	}
}

func TestCacheMiss(t *testing.T) {
	c := New()
	if _, ok := c.Get("Nothing"); ok {
		t.Fatal("expected miss")
	}
}

func TestNegativeEntry(t *testing.T) {
	c := New()
	c.Put("Nonexistent page", "ignored", false)

	entry, ok := c.Get("nonexistent page")
	if !ok {
		t.Fatal("negative results must be cached")
	}
	if entry.Exists || entry.Canonical != "" {
		t.Errorf("entry = %+v, want non-existent with empty canonical", entry)
	}
}

func TestFirstWriteWins(t *testing.T) {
	c := New()
	c.Put("Mercury", "Mercury (planet)", true)
	c.Put("mercury", "Mercury (element)", true)

	entry, _ := c.Get("MERCURY")
	if entry.Canonical != "Mercury (planet)" {
		t.Errorf("canonical: got %q, want first write %q", entry.Canonical, "Mercury (planet)")
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestRedirects(t *testing.T) {
	c := New()
	c.PutRedirect("Canine", true, "Dog")
	c.PutRedirect("Dog", false, "ignored")

	r, ok := c.GetRedirect("canine")
	if !ok || !r.IsRedirect || r.Target != "Dog" {
		t.Errorf("GetRedirect(canine) = (%+v, %v), want redirect to Dog", r, ok)
	}
	r, ok = c.GetRedirect("Dog")
	if !ok || r.IsRedirect || r.Target != "" {
		t.Errorf("GetRedirect(Dog) = (%+v, %v), want non-redirect", r, ok)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			title := fmt.Sprintf("Title %d", i%10)
			c.Put(title, title, true)
			c.Get(title)
		}()
	}
	wg.Wait()
	if c.Len() != 10 {
		t.Errorf("Len() = %d, want 10", c.Len())
	}
}
