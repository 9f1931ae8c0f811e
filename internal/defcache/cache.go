package defcache

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// Clock supplies the current time; tests inject a fake to control TTL expiry.
type Clock func() time.Time

type entry[V any] struct {
	value    V
	storedAt time.Time
}

// ttlCache is a time-bounded map shared by the scheme and test-file caches.
// Concurrent fills for the same key are last-writer-wins; cached values are
// derived deterministically from immutable storage content so either writer's
// value is equally valid.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     Clock
	entries map[string]entry[V]
}

func newTTLCache[V any](ttl time.Duration, now Clock) *ttlCache[V] {
	if now == nil {
		now = time.Now
	}
	return &ttlCache[V]{ttl: ttl, now: now, entries: make(map[string]entry[V])}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.expired(e) {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) missing(keys []string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var missing []string
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if e, ok := c.entries[key]; !ok || c.expired(e) {
			missing = append(missing, key)
		}
	}
	return missing
}

func (c *ttlCache[V]) merge(values map[string]V) {
	if len(values) == 0 {
		return
	}
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, value := range values {
		c.entries[key] = entry[V]{value: value, storedAt: now}
	}
}

func (c *ttlCache[V]) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for key, e := range c.entries {
		if c.expired(e) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed
}

func (c *ttlCache[V]) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry[V])
}

func (c *ttlCache[V]) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *ttlCache[V]) expired(e entry[V]) bool {
	return c.now().Sub(e.storedAt) >= c.ttl
}

func fileKey(workspaceID int64, alias string) string {
	return strconv.FormatInt(workspaceID, 10) + "|" + strings.ToUpper(strings.TrimSpace(alias))
}
