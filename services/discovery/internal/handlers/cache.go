package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/example/media-platform/internal/platform/metrics"
)

// Cache is the minimal read/write interface for the browse response cache.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, v any)
}

type cacheItem struct {
	val       any
	expiresAt time.Time
}

// TTLCache is an in-memory Cache with per-entry expiry and optional NATS invalidation.
type TTLCache struct {
	mu    sync.RWMutex
	items map[string]cacheItem
	ttl   time.Duration
	now   func() time.Time
	sub   *nats.Subscription
}

// NewTTLCache creates a TTLCache and wires up NATS key-level invalidation
// when nc is non-nil. Publishing "" or "ALL" on subj flushes everything.
func NewTTLCache(ttl time.Duration, nc *nats.Conn, subj string) *TTLCache {
	if ttl <= 0 {
		ttl = 60 * time.Second
	}
	c := &TTLCache{
		items: make(map[string]cacheItem),
		ttl:   ttl,
		now:   time.Now,
	}
	if nc != nil && subj != "" {
		c.sub, _ = nc.Subscribe(subj, func(m *nats.Msg) {
			c.Invalidate(string(m.Data))
			metrics.NATSConsumed.WithLabelValues(subj, "ok").Inc()
		})
	}
	return c
}

func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		metrics.RecordCache("browse", false)
		return nil, false
	}
	if c.now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok2 := c.items[key]; ok2 && c.now().After(cur.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		metrics.RecordCache("browse", false)
		return nil, false
	}
	metrics.RecordCache("browse", true)
	return it.val, true
}

func (c *TTLCache) Set(key string, v any) {
	c.mu.Lock()
	c.items[key] = cacheItem{val: v, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops key, or every entry when key is empty or "ALL".
// A trailing "*" drops every key with that prefix.
func (c *TTLCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case key == "" || strings.EqualFold(key, "ALL"):
		c.items = make(map[string]cacheItem)
	case strings.HasSuffix(key, "*"):
		prefix := strings.TrimSuffix(key, "*")
		for k := range c.items {
			if strings.HasPrefix(k, prefix) {
				delete(c.items, k)
			}
		}
	default:
		delete(c.items, key)
	}
}

// Close stops the invalidation subscription.
func (c *TTLCache) Close() error {
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe()
}
