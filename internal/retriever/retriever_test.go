package retriever

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
	"github.com/hivetechs-collective/hive-consensus/internal/vectorstore"
)

func seedStore(t *testing.T, store *vectorstore.MemoryStore, embedder embedding.Embedder, items map[string]map[string]interface{}) {
	t.Helper()
	ctx := context.Background()
	for content, meta := range items {
		vec, err := embedder.Embed(ctx, content)
		require.NoError(t, err)
		require.NoError(t, store.Add(ctx, content, vec, content, meta))
	}
}

func TestGetStageContextRespectsTokenBudget(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := embedding.NewHashEmbedder(32)
	seedStore(t, store, embedder, map[string]map[string]interface{}{
		"a very long precedent about rollback safety that should cost many tokens": {"quality_score": 0.9},
		"short one":                                                                {"quality_score": 0.9},
	})

	r := New(store, embedder)
	sc, err := r.GetStageContext(context.Background(), domain.StageCurator, "rollback safety", 3)
	require.NoError(t, err)

	assert.LessOrEqual(t, sc.TokensUsed, 3)
}

func TestGetStageContextRefinerFiltersLowQuality(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	embedder := embedding.NewHashEmbedder(32)
	seedStore(t, store, embedder, map[string]map[string]interface{}{
		"high quality precedent": {"quality_score": 0.9},
		"low quality precedent":  {"quality_score": 0.1},
	})

	r := New(store, embedder)
	sc, err := r.GetStageContext(context.Background(), domain.StageRefiner, "precedent", 1000)
	require.NoError(t, err)

	for _, p := range sc.Precedents {
		assert.NotEqual(t, "low quality precedent", p.Content)
	}
}

func TestGetStageContextUnreachableStoreIsContextUnavailable(t *testing.T) {
	r := New(&erroringStore{}, embedding.NewHashEmbedder(16))
	_, err := r.GetStageContext(context.Background(), domain.StageGenerator, "q", 100)
	require.Error(t, err)
}

type erroringStore struct{}

func (e *erroringStore) Add(context.Context, string, []float32, string, map[string]interface{}) error {
	return nil
}
func (e *erroringStore) Search(context.Context, []float32, int) ([]vectorstore.Record, error) {
	return nil, assertErr
}
func (e *erroringStore) Get(context.Context, string) (*vectorstore.Record, bool, error) {
	return nil, false, nil
}
func (e *erroringStore) Delete(context.Context, string) (bool, error) { return false, nil }

var assertErr = errUnavailable{}

type errUnavailable struct{}

func (errUnavailable) Error() string { return "store unreachable" }
