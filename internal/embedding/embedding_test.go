package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashEmbedderDeterministic(t *testing.T) {
	e := NewHashEmbedder(64)
	ctx := context.Background()

	v1, err := e.Embed(ctx, "rollback operations must be reversible")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "rollback operations must be reversible")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 64)
}

func TestHashEmbedderDistinctInputsDiffer(t *testing.T) {
	e := NewHashEmbedder(32)
	ctx := context.Background()

	v1, _ := e.Embed(ctx, "generator stage")
	v2, _ := e.Embed(ctx, "curator stage")
	assert.NotEqual(t, v1, v2)
}

func TestCachingEmbedderHitsCache(t *testing.T) {
	inner := NewHashEmbedder(16)
	cached := NewCachingEmbedder(inner, 10, time.Minute)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "same text")
	require.NoError(t, err)
	_, err = cached.Embed(ctx, "same text")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.CallCount, "second call should be served from cache")
	stats := cached.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCachingEmbedderBatchPartialHit(t *testing.T) {
	inner := NewHashEmbedder(16)
	cached := NewCachingEmbedder(inner, 10, time.Minute)
	ctx := context.Background()

	_, err := cached.Embed(ctx, "alpha")
	require.NoError(t, err)

	results, err := cached.EmbedBatch(ctx, []string{"alpha", "beta"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 2, inner.CallCount, "alpha served from cache, beta fetched fresh")
}
