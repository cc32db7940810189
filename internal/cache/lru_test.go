package cache

import (
	"testing"
	"time"
)

func TestGetSetDelete(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss on empty cache")
	}

	c.Set("a", 1)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("got (%d, %v), want (1, true)", v, ok)
	}

	c.Delete("a")
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected miss after delete")
	}
}

func TestSizeEviction(t *testing.T) {
	c := NewLRUCache[string](2, time.Minute)
	c.Set("a", "1")
	c.Set("b", "2")
	c.Get("a") // a becomes most recently used
	c.Set("c", "3")

	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b evicted as least recently used")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a retained")
	}
}

func TestTTLExpiry(t *testing.T) {
	c := NewLRUCache[int](10, 10*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(20 * time.Millisecond)

	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected expiry after TTL")
	}

	c.Set("b", 2)
	time.Sleep(20 * time.Millisecond)
	if cleaned := c.CleanExpired(); cleaned != 1 {
		t.Fatalf("cleaned = %d, want 1", cleaned)
	}
	if c.Size() != 0 {
		t.Fatalf("size after cleanup = %d, want 0", c.Size())
	}
}
