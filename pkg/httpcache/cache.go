// Package httpcache persists HTTP responses and values derived from them (search
// results, image hashes, embeddings) on disk. Concurrent requests for the same key
// share one fetch.
package httpcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"
)

const appName = "doppelganger"

// Cacher is the subset of Cache the fetching packages depend on.
type Cacher interface {
	GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error)
	TTL() time.Duration
}

// Cache is a memory-over-disk cache of byte values.
type Cache struct {
	tiered *sfcache.TieredCache[string, []byte]
	ttl    time.Duration
}

// New opens the cache in the user cache directory (~/.cache/doppelganger on Linux).
func New(ttl time.Duration) (*Cache, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return NewWithPath(ttl, filepath.Join(dir, appName))
}

// NewWithPath opens the cache under dir, creating it if needed.
func NewWithPath(ttl time.Duration, dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	store, err := localfs.New[string, []byte](appName, dir)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	tiered, err := sfcache.NewTiered[string, []byte](store, sfcache.TTL(ttl))
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	return &Cache{tiered: tiered, ttl: ttl}, nil
}

// NewNull returns a Cache that stores nothing. Concurrent identical fetches are
// still collapsed.
func NewNull() *Cache {
	tiered, err := sfcache.NewTiered[string, []byte](null.New[string, []byte]())
	if err != nil {
		panic("httpcache: null store rejected: " + err.Error())
	}
	return &Cache{tiered: tiered}
}

// GetSet returns the value for key, calling fetch on a miss and storing its result.
// A fetch error is returned and nothing is stored.
func (c *Cache) GetSet(ctx context.Context, key string, fetch func(context.Context) ([]byte, error), ttl ...time.Duration) ([]byte, error) {
	var missed bool
	data, err := c.tiered.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
		missed = true
		return fetch(ctx)
	}, ttl...)
	if missed {
		stats.misses.Add(1)
	} else if err == nil {
		stats.hits.Add(1)
	}
	return data, err
}

// TTL is the default lifetime of an entry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Close flushes and releases the store.
func (c *Cache) Close() error {
	return c.tiered.Close()
}

// Key builds a cache key: namespace, a colon, and a SHA-256 of the NUL-separated parts.
func Key(namespace string, parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return namespace + ":" + hex.EncodeToString(h.Sum(nil))
}

// Stats counts cache lookups since start or the last ResetStats.
type Stats struct {
	Hits   int64
	Misses int64
}

var stats struct {
	hits, misses atomic.Int64
}

// CacheStats returns the process-wide lookup counts.
func CacheStats() Stats {
	return Stats{Hits: stats.hits.Load(), Misses: stats.misses.Load()}
}

// ResetStats zeroes the lookup counts.
func ResetStats() {
	stats.hits.Store(0)
	stats.misses.Store(0)
}
