package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/lrucache"
)

// CachingEmbedder wraps an Embedder with a size-bounded, TTL-evicting
// LRU cache keyed on the SHA-256 fingerprint of the input text
// (spec.md §4 "Embedding cache (C10): readers-writer lock; size-bounded
// LRU" — reused here for C2 itself since the fingerprint scheme is
// identical).
type CachingEmbedder struct {
	inner Embedder
	cache *lrucache.Cache[[]float32]
	ttl   time.Duration
}

// NewCachingEmbedder wraps inner with a cache of the given capacity
// and per-entry TTL.
func NewCachingEmbedder(inner Embedder, capacity int, ttl time.Duration) *CachingEmbedder {
	return &CachingEmbedder{
		inner: inner,
		cache: lrucache.New[[]float32](capacity),
		ttl:   ttl,
	}
}

func (c *CachingEmbedder) Dimensions() int { return c.inner.Dimensions() }

func fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := fingerprint(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}
	v, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, v, c.ttl)
	return v, nil
}

func (c *CachingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	misses := make([]string, 0, len(texts))
	missIdx := make([]int, 0, len(texts))

	for i, t := range texts {
		if v, ok := c.cache.Get(fingerprint(t)); ok {
			out[i] = v
			continue
		}
		misses = append(misses, t)
		missIdx = append(missIdx, i)
	}

	if len(misses) == 0 {
		return out, nil
	}

	fetched, err := c.inner.EmbedBatch(ctx, misses)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		out[idx] = fetched[j]
		c.cache.Set(fingerprint(texts[idx]), fetched[j], c.ttl)
	}
	return out, nil
}

// Stats exposes the underlying cache's hit/miss/eviction counters.
func (c *CachingEmbedder) Stats() lrucache.Stats {
	return c.cache.Stats()
}
