package knowledge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
	"github.com/hivetechs-collective/hive-consensus/internal/vectorstore"
)

func newTestIndexer(t *testing.T) *Indexer {
	t.Helper()
	idx, err := Open(":memory:", vectorstore.NewMemoryStore(), embedding.NewHashEmbedder(32))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestIndexOutputIsIdempotentPerFingerprint(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()

	first, err := idx.IndexOutput(ctx, "curator answer text", "what is the fix", "conv-1")
	require.NoError(t, err)

	second, err := idx.IndexOutput(ctx, "curator answer text", "what is the fix", "conv-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "re-indexing identical (content, question) must not duplicate entries")
}

func TestIndexOutputDistinctInputsGetDistinctIDs(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()

	a, err := idx.IndexOutput(ctx, "answer A", "question A", "conv-1")
	require.NoError(t, err)
	b, err := idx.IndexOutput(ctx, "answer B", "question B", "conv-1")
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
}

func TestPredictOperationSuccessLaplaceSmoothing(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	embedder := embedding.NewHashEmbedder(32)

	op := domain.FileOperation{Kind: domain.OpUpdate, Path: "internal/foo.go", Content: "package foo"}
	opCtx := domain.OperationContext{RepositoryPath: "/repo", UserQuestion: "fix the bug", Timestamp: time.Now()}

	for i := 0; i < 4; i++ {
		require.NoError(t, idx.RecordOutcome(ctx, embedder, op, opCtx, true, time.Second, nil))
	}
	require.NoError(t, idx.RecordOutcome(ctx, embedder, op, opCtx, false, time.Second, nil))

	pred, err := idx.Predict(ctx, embedder, op, opCtx)
	require.NoError(t, err)

	assert.Equal(t, 5, pred.SampleSize)
	assert.InDelta(t, float64(4+1)/float64(5+2), pred.SuccessProbability, 1e-9)
	assert.Len(t, pred.NearestIDs, 5)
}

func TestPredictOperationSuccessWithNoHistoryIsNeutral(t *testing.T) {
	idx := newTestIndexer(t)
	ctx := context.Background()
	embedder := embedding.NewHashEmbedder(32)

	op := domain.FileOperation{Kind: domain.OpCreate, Path: "new.go"}
	opCtx := domain.OperationContext{RepositoryPath: "/repo", UserQuestion: "add a file"}

	pred, err := idx.Predict(ctx, embedder, op, opCtx)
	require.NoError(t, err)

	assert.Equal(t, 0, pred.SampleSize)
	assert.InDelta(t, 0.5, pred.SuccessProbability, 1e-9)
}
