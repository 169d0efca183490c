package progress

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func TestStageCompletedUpdatesState(t *testing.T) {
	tr, _ := New(context.Background(), "run-1", nil)

	tr.StageStarted(domain.StageGenerator)
	tr.StageCompleted(domain.StageGenerator, 0.8, 150, 0.002)

	st := tr.StageState(domain.StageGenerator)
	assert.Equal(t, 100.0, st.ProgressPercent)
	assert.Equal(t, 0.8, st.QualityScore)
	assert.Equal(t, 150, st.Tokens)
}

func TestSubscriberReceivesEventsInOrder(t *testing.T) {
	tr, _ := New(context.Background(), "run-2", nil)
	sub := tr.Subscribe(16)

	tr.StageStarted(domain.StageGenerator)
	tr.ChunkArrived(domain.StageGenerator, "hello")
	tr.StageCompleted(domain.StageGenerator, 0.5, 10, 0.001)
	tr.PipelineCompleted()

	var kinds []string
	for i := 0; i < 4; i++ {
		kinds = append(kinds, string((<-sub).Kind))
	}
	require.Equal(t, []string{
		string(EventStageStarted), string(EventChunkArrived),
		string(EventStageCompleted), string(EventPipelineCompleted),
	}, kinds)
}

func TestBufferEvictsOldestNonTerminalEventsOverCap(t *testing.T) {
	tr, _ := New(context.Background(), "run-3", nil)
	tr.bufferCap = 200 // force eviction with a handful of chunks

	for i := 0; i < 50; i++ {
		tr.ChunkArrived(domain.StageGenerator, strings.Repeat("x", 20))
	}
	tr.PipelineCompleted()

	require.NotEmpty(t, tr.events)
	last := tr.events[len(tr.events)-1]
	assert.Equal(t, EventPipelineCompleted, last.Kind, "terminal event must survive eviction")
	assert.Less(t, tr.bufferBytes, 50*84, "old chunk events should have been evicted")
}

func TestCurrentStageTracksLastStarted(t *testing.T) {
	tr, _ := New(context.Background(), "run-4", nil)
	tr.StageStarted(domain.StageGenerator)
	tr.StageStarted(domain.StageRefiner)
	assert.Equal(t, domain.StageRefiner, tr.CurrentStage())
}
