package utils

import (
	"testing"
	"time"
)

func TestGlobalCacheExpiry(t *testing.T) {
	c, err := NewGlobalCache(10)
	if err != nil {
		t.Fatalf("NewGlobalCache: %v", err)
	}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("feed:1::20", []byte("page"), time.Minute)
	if got, ok := c.Get("feed:1::20"); !ok || string(got) != "page" {
		t.Fatalf("Get = %q, %v, want page, true", got, ok)
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("feed:1::20"); ok {
		t.Error("expected expired entry to be dropped")
	}
}

func TestGlobalCacheDeletePrefix(t *testing.T) {
	c, err := NewGlobalCache(10)
	if err != nil {
		t.Fatalf("NewGlobalCache: %v", err)
	}
	c.Set("feed:1::20", []byte("a"), time.Minute)
	c.Set("feed:1:go:20", []byte("b"), time.Minute)
	c.Set("feed:2::20", []byte("c"), time.Minute)

	if n := c.DeletePrefix("feed:1:"); n != 2 {
		t.Errorf("DeletePrefix removed %d, want 2", n)
	}
	if _, ok := c.Get("feed:2::20"); !ok {
		t.Error("tenant 2 entry should survive")
	}
}
