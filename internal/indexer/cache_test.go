package indexer

import (
	"bytes"
	"testing"
	"time"
)

func TestCacheServesFreshEntries(t *testing.T) {
	c := NewResponseCache(5 * time.Minute)
	cur := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cur }

	c.Put("user-bulk?fids=3", []byte(`{"users":[]}`))
	got, ok := c.Get("user-bulk?fids=3")
	if !ok || !bytes.Equal(got, []byte(`{"users":[]}`)) {
		t.Fatalf("expected fresh hit, got ok=%v body=%s", ok, got)
	}
	if _, ok := c.Get("user-bulk?fids=4"); ok {
		t.Fatalf("unexpected hit for different params")
	}
	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 1 || stats.Entries != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestCacheTreatsStaleAsMiss(t *testing.T) {
	c := NewResponseCache(5 * time.Minute)
	cur := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return cur }

	c.Put("followers?fid=3", []byte("v1"))
	cur = cur.Add(5 * time.Minute) // exactly TTL: stale
	if _, ok := c.Get("followers?fid=3"); ok {
		t.Fatalf("expected stale entry to read as miss")
	}
	// stale entries are overwritten, not purged
	if c.Stats().Entries != 1 {
		t.Fatalf("stale entry should remain until overwritten")
	}
	c.Put("followers?fid=3", []byte("v2"))
	got, ok := c.Get("followers?fid=3")
	if !ok || string(got) != "v2" {
		t.Fatalf("expected refreshed entry, got ok=%v body=%s", ok, got)
	}
}

func TestCacheClear(t *testing.T) {
	c := NewResponseCache(time.Minute)
	c.Put("a", []byte("1"))
	c.Put("b", []byte("2"))
	c.Clear()
	if c.Stats().Entries != 0 {
		t.Fatalf("expected empty cache after clear")
	}
}
