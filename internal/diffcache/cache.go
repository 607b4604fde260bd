// Package diffcache memoizes per-commit diff fetches for the lifetime of one
// reconciliation engine.
package diffcache

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/gitrevmissing/pkg/models"
)

// FetchFunc loads the ordered file changes of one commit
type FetchFunc func(ctx context.Context, repoID, sha string) ([]models.FileChange, error)

// Cache holds diffs keyed by repository and SHA. Concurrent callers asking
// for the same key share a single in-flight fetch.
type Cache struct {
	fetch   FetchFunc
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string][]models.FileChange
	fetches atomic.Int64
}

// New creates an empty cache backed by fetch
func New(fetch FetchFunc) *Cache {
	return &Cache{
		fetch:   fetch,
		entries: make(map[string][]models.FileChange),
	}
}

func key(repoID, sha string) string {
	return repoID + "/" + sha
}

// Get returns the cached diff for sha, fetching it on first use.
// Failed fetches are not cached. A fetch runs under the ctx of the caller
// that started it, so callers joining it share that ctx's cancellation.
func (c *Cache) Get(ctx context.Context, repoID, sha string) ([]models.FileChange, error) {
	k := key(repoID, sha)

	c.mu.RLock()
	files, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return files, nil
	}

	v, err, _ := c.group.Do(k, func() (interface{}, error) {
		// A concurrent caller may have stored it between our read and Do.
		c.mu.RLock()
		files, ok := c.entries[k]
		c.mu.RUnlock()
		if ok {
			return files, nil
		}

		c.fetches.Add(1)
		files, err := c.fetch(ctx, repoID, sha)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[k] = files
		c.mu.Unlock()
		return files, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.FileChange), nil
}

// Len returns the number of cached diffs
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fetches returns how many times the underlying fetch function was called
func (c *Cache) Fetches() int64 {
	return c.fetches.Load()
}

// Clear drops every cached diff
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string][]models.FileChange)
	c.mu.Unlock()
}
