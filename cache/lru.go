// Package cache provides a small in-process LRU with per-entry TTL, used
// to memoize retrieval results per workspace, query and retrieval
// settings.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"
)

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
	element *list.Element
}

type LRU[V any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry[V]
	order    *list.List
}

func NewLRU[V any](capacity int, ttl time.Duration) *LRU[V] {
	if capacity <= 0 {
		capacity = 500
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &LRU[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry[V], capacity),
		order:    list.New(),
	}
}

func (c *LRU[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	ent, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !ent.expires.IsZero() && !time.Now().Before(ent.expires) {
		c.remove(ent)
		return zero, false
	}
	c.order.MoveToFront(ent.element)
	return ent.value, true
}

func (c *LRU[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.value = value
		ent.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(ent.element)
		return
	}
	if len(c.items) >= c.capacity {
		if back := c.order.Back(); back != nil {
			c.remove(c.items[back.Value.(string)])
		}
	}
	c.items[key] = &entry[V]{
		key:     key,
		value:   value,
		expires: time.Now().Add(c.ttl),
		element: c.order.PushFront(key),
	}
}

// Invalidate drops every entry whose key starts with prefix. Ingest and
// delete paths call this with the workspace prefix so stale retrieval
// results never outlive a corpus change.
func (c *LRU[V]) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, ent := range c.items {
		if strings.HasPrefix(key, prefix) {
			c.remove(ent)
		}
	}
}

func (c *LRU[V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*entry[V], c.capacity)
	c.order.Init()
}

func (c *LRU[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU[V]) remove(ent *entry[V]) {
	if ent == nil {
		return
	}
	if ent.element != nil {
		c.order.Remove(ent.element)
	}
	delete(c.items, ent.key)
}

// Key builds a cache key of the form "<workspace>:<digest>" where the
// digest covers the query and every retrieval setting that changes the
// result.
func Key(workspaceID string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return workspaceID + ":" + hex.EncodeToString(h.Sum(nil)[:16])
}
