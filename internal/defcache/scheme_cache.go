package defcache

import (
	"context"
	"log/slog"
	"time"

	"autocoder/internal/logging"
	"autocoder/internal/scheme"
)

// DefaultSchemeTTL bounds how long parsed coding schemes stay cached.
const DefaultSchemeTTL = 30 * time.Minute

// SchemeLoader fetches raw scheme payloads for the given ids. Missing ids are
// simply absent from the result.
type SchemeLoader func(ctx context.Context, ids []string) (map[string]string, error)

// SchemeCache holds parsed coding schemes keyed by scheme-reference id.
// Payloads that fail to parse are cached as the empty-scheme sentinel so a
// broken scheme is not re-parsed on every response within a run.
type SchemeCache struct {
	inner  *ttlCache[*scheme.Scheme]
	logger *slog.Logger
}

// NewSchemeCache constructs the cache. A nil clock means wall time; a
// non-positive TTL means DefaultSchemeTTL.
func NewSchemeCache(ttl time.Duration, now Clock, logger *slog.Logger) *SchemeCache {
	if ttl <= 0 {
		ttl = DefaultSchemeTTL
	}
	return &SchemeCache{
		inner:  newTTLCache[*scheme.Scheme](ttl, now),
		logger: logging.NewComponentLogger(logger, "schemecache"),
	}
}

// Get returns the cached scheme for the id, or a miss.
func (c *SchemeCache) Get(id string) (*scheme.Scheme, bool) {
	return c.inner.get(id)
}

// RefreshMissing loads only the ids not currently cached and merges them in.
// Ids the loader cannot supply, and payloads that fail to parse, are cached
// as the empty sentinel.
func (c *SchemeCache) RefreshMissing(ctx context.Context, ids []string, loader SchemeLoader) error {
	missing := c.inner.missing(ids)
	if len(missing) == 0 {
		return nil
	}
	payloads, err := loader(ctx, missing)
	if err != nil {
		return err
	}

	parsed := make(map[string]*scheme.Scheme, len(missing))
	for _, id := range missing {
		payload, ok := payloads[id]
		if !ok {
			c.logger.Warn("scheme payload missing from store",
				logging.String("scheme_id", id),
				logging.String(logging.FieldEventType, "scheme_missing"))
			parsed[id] = scheme.Empty()
			continue
		}
		s, parseErr := scheme.Parse([]byte(payload))
		if parseErr != nil {
			c.logger.Warn("scheme payload unparseable, caching empty sentinel",
				logging.String("scheme_id", id),
				logging.Error(parseErr),
				logging.String(logging.FieldEventType, "scheme_parse_failed"))
			parsed[id] = scheme.Empty()
			continue
		}
		parsed[id] = s
	}
	c.inner.merge(parsed)
	return nil
}

// Sweep evicts entries older than the TTL and returns how many were removed.
func (c *SchemeCache) Sweep() int { return c.inner.sweep() }

// Invalidate drops every cached scheme.
func (c *SchemeCache) Invalidate() { c.inner.invalidate() }

// Len returns the number of cached entries, expired or not.
func (c *SchemeCache) Len() int { return c.inner.len() }
