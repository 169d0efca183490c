package consensus

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
	"github.com/hivetechs-collective/hive-consensus/internal/knowledge"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
	"github.com/hivetechs-collective/hive-consensus/internal/progress"
	"github.com/hivetechs-collective/hive-consensus/internal/stage"
	"github.com/hivetechs-collective/hive-consensus/internal/vectorstore"
)

func testProfile() domain.ConsensusProfile {
	return domain.ConsensusProfile{
		Name:            "test",
		ContextStrategy: domain.ContextNone,
		AutoAcceptMode:  domain.ModeBalanced,
		Retry:           domain.RetryPolicy{MaxAttempts: 1},
		Temperatures: map[domain.Stage]float32{
			domain.StageGenerator: 0.5, domain.StageRefiner: 0.4,
			domain.StageValidator: 0.2, domain.StageCurator: 0.3,
		},
	}
}

func newTestEngine(t *testing.T, response string, failWith *modelclient.ChunkEvent) *Engine {
	t.Helper()
	client := modelclient.NewMockClient(response)
	client.FailWith = failWith
	prices := modelclient.NewPriceTable()

	gen := stage.NewGenerator(client, prices, nil, nil)
	ref := stage.NewRefiner(client, prices)
	val := stage.NewValidator(client, prices)
	cur := stage.NewCurator(client, prices)

	dbPath := filepath.Join(t.TempDir(), "knowledge.db")
	idx, err := knowledge.Open(dbPath, vectorstore.NewMemoryStore(), embedding.NewHashEmbedder(8))
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	return New(gen, ref, val, cur, idx, 4, nil)
}

func TestProcessRunsStagesInOrderAndRollsUpMetadata(t *testing.T) {
	e := newTestEngine(t, "A thorough answer with *because* reasoning and a closing sentence.", nil)

	result := e.Process(context.Background(), domain.ConsensusRequest{
		Query:   "how do I do this?",
		Profile: testProfile(),
	}, "conv-1", nil)

	require.True(t, result.Success)
	require.Len(t, result.Stages, 4)
	assert.Equal(t, domain.StageGenerator, result.Stages[0].Stage)
	assert.Equal(t, domain.StageRefiner, result.Stages[1].Stage)
	assert.Equal(t, domain.StageValidator, result.Stages[2].Stage)
	assert.Equal(t, domain.StageCurator, result.Stages[3].Stage)
	assert.NotEmpty(t, result.FinalAnswer)
	assert.GreaterOrEqual(t, result.Metadata.TotalTokens, 0)

	// background indexing is fire-and-forget; give it a moment before the
	// test process exits so the goroutine doesn't race t.Cleanup.
	time.Sleep(20 * time.Millisecond)
}

func TestProcessReturnsPartialResultOnStageFailure(t *testing.T) {
	e := newTestEngine(t, "", &modelclient.ChunkEvent{
		Kind: modelclient.ChunkError, ErrKind: modelclient.ErrorPermanent, ErrMessage: "blocked content",
	})

	result := e.Process(context.Background(), domain.ConsensusRequest{
		Query:   "do something unsafe",
		Profile: testProfile(),
	}, "conv-2", nil)

	assert.False(t, result.Success)
	assert.Equal(t, domain.StageGenerator, result.FailedStage)
	assert.NotEmpty(t, result.FailReason)
	assert.Empty(t, result.FinalAnswer)
}

func TestProcessReturnsImmediatelyOnCanceledContext(t *testing.T) {
	e := newTestEngine(t, "answer", nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := e.Process(ctx, domain.ConsensusRequest{
		Query:   "anything",
		Profile: testProfile(),
	}, "conv-3", nil)

	assert.False(t, result.Success)
	assert.Equal(t, domain.StageGenerator, result.FailedStage)
	assert.Equal(t, "canceled", result.FailReason)
	assert.Empty(t, result.Stages)
}

func TestProcessEmitsProgressEventsInStageOrder(t *testing.T) {
	e := newTestEngine(t, "A complete answer. It explains because reasons apply here today.", nil)

	tracker, _ := progress.New(context.Background(), "run-1", nil)
	sub := tracker.Subscribe(64)

	result := e.Process(context.Background(), domain.ConsensusRequest{
		Query:   "explain",
		Profile: testProfile(),
	}, "conv-4", tracker)
	require.True(t, result.Success)

	var sawGenerator, sawCurator bool
	var lastKind progress.EventKind
	timeout := time.After(time.Second)
drain:
	for {
		select {
		case ev, ok := <-sub:
			if !ok {
				break drain
			}
			if ev.Stage == domain.StageGenerator && ev.Kind == progress.EventStageStarted {
				sawGenerator = true
			}
			if ev.Stage == domain.StageCurator && ev.Kind == progress.EventStageCompleted {
				sawCurator = true
			}
			lastKind = ev.Kind
			if ev.Kind == progress.EventPipelineCompleted {
				break drain
			}
		case <-timeout:
			break drain
		}
	}

	assert.True(t, sawGenerator)
	assert.True(t, sawCurator)
	assert.Equal(t, progress.EventPipelineCompleted, lastKind)
}

func TestNewConversationIDIsUnique(t *testing.T) {
	a := NewConversationID()
	b := NewConversationID()
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}
