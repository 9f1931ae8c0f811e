package defcache

import (
	"context"
	"time"
)

// DefaultTestFileTTL bounds how long raw test-definition files stay cached.
const DefaultTestFileTTL = 15 * time.Minute

// TestFileLoader fetches raw test-definition contents for the given aliases
// within one workspace. Missing aliases are absent from the result.
type TestFileLoader func(ctx context.Context, workspaceID int64, aliases []string) (map[string]string, error)

// TestFileCache holds raw test-definition file content keyed by workspace id
// and uppercase unit alias.
type TestFileCache struct {
	inner *ttlCache[string]
}

// NewTestFileCache constructs the cache. A nil clock means wall time; a
// non-positive TTL means DefaultTestFileTTL.
func NewTestFileCache(ttl time.Duration, now Clock) *TestFileCache {
	if ttl <= 0 {
		ttl = DefaultTestFileTTL
	}
	return &TestFileCache{inner: newTTLCache[string](ttl, now)}
}

// Get returns the cached file content for the workspace and alias, or a miss.
func (c *TestFileCache) Get(workspaceID int64, alias string) (string, bool) {
	return c.inner.get(fileKey(workspaceID, alias))
}

// RefreshMissing loads only the aliases not currently cached for the
// workspace and merges them in. Aliases the loader cannot supply are left
// uncached; the caller treats them as units without a definition file.
func (c *TestFileCache) RefreshMissing(ctx context.Context, workspaceID int64, aliases []string, loader TestFileLoader) error {
	keyed := make(map[string]string, len(aliases))
	for _, alias := range aliases {
		keyed[fileKey(workspaceID, alias)] = alias
	}
	keys := make([]string, 0, len(keyed))
	for key := range keyed {
		keys = append(keys, key)
	}

	missingKeys := c.inner.missing(keys)
	if len(missingKeys) == 0 {
		return nil
	}
	missingAliases := make([]string, 0, len(missingKeys))
	for _, key := range missingKeys {
		missingAliases = append(missingAliases, keyed[key])
	}

	contents, err := loader(ctx, workspaceID, missingAliases)
	if err != nil {
		return err
	}
	merged := make(map[string]string, len(contents))
	for alias, content := range contents {
		merged[fileKey(workspaceID, alias)] = content
	}
	c.inner.merge(merged)
	return nil
}

// Sweep evicts entries older than the TTL and returns how many were removed.
func (c *TestFileCache) Sweep() int { return c.inner.sweep() }

// Invalidate drops every cached file.
func (c *TestFileCache) Invalidate() { c.inner.invalidate() }

// Len returns the number of cached entries, expired or not.
func (c *TestFileCache) Len() int { return c.inner.len() }
