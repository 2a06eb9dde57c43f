package cache

import (
	"testing"
	"time"
)

func TestLRU_GetSet(t *testing.T) {
	c := NewLRU[string](2, time.Minute)
	c.Set("a", "1")
	if v, ok := c.Get("a"); !ok || v != "1" {
		t.Fatalf("get after set: %v %v", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Fatalf("hit on missing key")
	}
}

func TestLRU_EvictsLeastRecent(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a") // refresh a
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatalf("least recently used entry not evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("recently used entry evicted")
	}
}

func TestLRU_TTLExpiry(t *testing.T) {
	c := NewLRU[int](10, time.Millisecond)
	c.Set("a", 1)
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry returned")
	}
}

func TestLRU_InvalidateByPrefix(t *testing.T) {
	c := NewLRU[int](10, time.Minute)
	c.Set(Key("ws1", "q1"), 1)
	c.Set(Key("ws1", "q2"), 2)
	c.Set(Key("ws2", "q1"), 3)
	c.Invalidate("ws1:")
	if c.Len() != 1 {
		t.Fatalf("expected only ws2 entry to survive, len %d", c.Len())
	}
	if _, ok := c.Get(Key("ws2", "q1")); !ok {
		t.Fatalf("unrelated workspace invalidated")
	}
}

func TestKey_SensitiveToSettings(t *testing.T) {
	a := Key("ws", "query", "top_n=5", "hybrid=true")
	b := Key("ws", "query", "top_n=5", "hybrid=false")
	if a == b {
		t.Fatalf("settings change must change the key")
	}
	if a != Key("ws", "query", "top_n=5", "hybrid=true") {
		t.Fatalf("key not deterministic")
	}
}
