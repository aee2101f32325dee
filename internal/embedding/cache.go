package embedding

import (
	"context"
	"image"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/hyperjump/kakunin/pkg/utils"
)

// CachedEmbedder wraps an Embedder with a TTL cache keyed by content hash and
// model version. Concurrent requests for the same uncached key are serialized
// per key so the underlying capability is invoked at most once per key
// (compute-once semantics).
type CachedEmbedder struct {
	inner Embedder
	cache *gocache.Cache
	locks *utils.KeyedLocks
}

// NewCachedEmbedder wraps inner with a cache using the given TTL.
func NewCachedEmbedder(inner Embedder, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: gocache.New(ttl, 2*ttl),
		locks: utils.NewKeyedLocks(),
	}
}

// Embed returns the cached vector for key when present, computing and
// caching it otherwise. Empty keys bypass the cache. Callers must not
// mutate the returned slice.
func (c *CachedEmbedder) Embed(ctx context.Context, key string, img image.Image) ([]float32, error) {
	if key == "" {
		return c.inner.Embed(ctx, key, img)
	}
	cacheKey := c.inner.ModelVersion() + ":" + key

	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]float32), nil
	}

	unlock := c.locks.Lock(cacheKey)
	defer unlock()

	// Another request may have computed it while we waited for the lock.
	if v, ok := c.cache.Get(cacheKey); ok {
		return v.([]float32), nil
	}

	vec, err := c.inner.Embed(ctx, key, img)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKey, vec)
	return vec, nil
}

// Dimensions returns the inner embedder's vector length.
func (c *CachedEmbedder) Dimensions() int { return c.inner.Dimensions() }

// ModelVersion returns the inner embedder's model version.
func (c *CachedEmbedder) ModelVersion() string { return c.inner.ModelVersion() }

// Close closes the inner embedder.
func (c *CachedEmbedder) Close() error { return c.inner.Close() }
