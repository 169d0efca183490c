// Package progress implements the Progress Tracker (spec.md §4.10
// C12): per-stage progress/quality/token/cost aggregation and a typed
// event sequence delivered to subscribers in emission order, bounded
// by a per-run serialized-size cap.
package progress

import (
	"context"
	"sync"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
)

// EventKind is one of the five typed progress events spec.md §4.10
// names.
type EventKind string

const (
	EventStageStarted      EventKind = "StageStarted"
	EventChunkArrived      EventKind = "ChunkArrived"
	EventStageCompleted    EventKind = "StageCompleted"
	EventPipelineCompleted EventKind = "PipelineCompleted"
	EventPipelineFailed    EventKind = "PipelineFailed"
)

// terminal reports whether an event kind marks the end of a run —
// eviction never drops these (spec.md §4.10: "oldest non-terminal
// events are dropped").
func (k EventKind) terminal() bool {
	return k == EventPipelineCompleted || k == EventPipelineFailed
}

// Event is one entry in the run's event sequence.
type Event struct {
	Kind          EventKind
	Stage         domain.Stage
	Chunk         string
	ProgressPct   float64
	QualityScore  float64
	Tokens        int
	CostUSD       float64
	Err           string
	approxBytes   int
}

// StageState is the live (progress_percent, quality_score, tokens,
// cost) tuple for one stage.
type StageState struct {
	ProgressPercent float64
	QualityScore    float64
	Tokens          int
	CostUSD         float64
}

// maxBufferBytes is the default per-run serialized-event cap
// (spec.md §4.10: "10 MB").
const maxBufferBytes = 10 * humanize.MByte

// Tracker is a single consensus run's progress tracker. Subscribers
// register once per run (spec.md §4.10) and receive events strictly
// in emission order via a dedicated channel.
type Tracker struct {
	mu          sync.Mutex
	events      []Event
	bufferBytes int
	bufferCap   int
	stages      map[domain.Stage]*StageState
	current     domain.Stage
	subscribers []chan Event

	tracer     trace.Tracer
	span       trace.Span
	stageSpans map[domain.Stage]trace.Span
	logger     gomindlog.Logger
}

// New constructs a Tracker for one run, starting an OTel span that
// wraps the whole pipeline.
func New(ctx context.Context, runID string, logger gomindlog.Logger) (*Tracker, context.Context) {
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	tracer := otel.Tracer("hive-consensus/pipeline")
	spanCtx, span := tracer.Start(ctx, "consensus.run", trace.WithAttributes(
		attribute.String("run_id", runID),
	))

	t := &Tracker{
		stages:     make(map[domain.Stage]*StageState, len(domain.Stages)),
		bufferCap:  maxBufferBytes,
		tracer:     tracer,
		span:       span,
		stageSpans: make(map[domain.Stage]trace.Span, len(domain.Stages)),
		logger:     logger,
	}
	for _, s := range domain.Stages {
		t.stages[s] = &StageState{}
	}
	return t, spanCtx
}

// Subscribe registers a new subscriber channel; must be called before
// the run begins emitting events the subscriber cares about.
func (t *Tracker) Subscribe(buffer int) <-chan Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	ch := make(chan Event, buffer)
	t.subscribers = append(t.subscribers, ch)
	return ch
}

// StageStarted marks the beginning of a stage, opening a span that
// stays open until StageCompleted closes it.
func (t *Tracker) StageStarted(stage domain.Stage) {
	_, span := t.tracer.Start(context.Background(), "consensus.stage."+stage.String())

	t.mu.Lock()
	t.current = stage
	t.stageSpans[stage] = span
	t.mu.Unlock()

	t.emit(Event{Kind: EventStageStarted, Stage: stage})
}

// ChunkArrived records a streamed token/chunk for the current stage.
func (t *Tracker) ChunkArrived(stage domain.Stage, chunk string) {
	t.emit(Event{Kind: EventChunkArrived, Stage: stage, Chunk: chunk})
}

// StageCompleted records the final (progress, quality, tokens, cost)
// tuple for a stage.
func (t *Tracker) StageCompleted(stage domain.Stage, quality float64, tokens int, costUSD float64) {
	t.mu.Lock()
	st := t.stages[stage]
	st.ProgressPercent = 100
	st.QualityScore = quality
	st.Tokens = tokens
	st.CostUSD = costUSD
	span := t.stageSpans[stage]
	delete(t.stageSpans, stage)
	t.mu.Unlock()

	if span != nil {
		span.SetAttributes(
			attribute.Float64("quality_score", quality),
			attribute.Int("tokens", tokens),
			attribute.Float64("cost_usd", costUSD),
		)
		span.End()
	}

	t.emit(Event{
		Kind: EventStageCompleted, Stage: stage,
		ProgressPct: 100, QualityScore: quality, Tokens: tokens, CostUSD: costUSD,
	})
}

// PipelineCompleted marks successful completion and closes the span.
func (t *Tracker) PipelineCompleted() {
	t.emit(Event{Kind: EventPipelineCompleted})
	t.span.End()
}

// PipelineFailed marks a failed run, attaching the error, and closes
// the span.
func (t *Tracker) PipelineFailed(err error) {
	t.mu.Lock()
	for stage, span := range t.stageSpans {
		span.RecordError(err)
		span.End()
		delete(t.stageSpans, stage)
	}
	t.mu.Unlock()

	t.span.RecordError(err)
	t.emit(Event{Kind: EventPipelineFailed, Err: err.Error()})
	t.span.End()
}

// StageState returns a snapshot of one stage's aggregated state.
func (t *Tracker) StageState(stage domain.Stage) StageState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.stages[stage]
}

// CurrentStage returns the stage currently in flight.
func (t *Tracker) CurrentStage() domain.Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

func (t *Tracker) emit(e Event) {
	e.approxBytes = approxSize(e)

	t.mu.Lock()
	t.events = append(t.events, e)
	t.bufferBytes += e.approxBytes
	t.evictIfOverCapLocked()
	subs := make([]chan Event, len(t.subscribers))
	copy(subs, t.subscribers)
	t.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			t.logger.Warn("progress subscriber channel full, dropping event", map[string]interface{}{
				"event_kind": string(e.Kind),
			})
		}
	}
}

// evictIfOverCapLocked drops the oldest non-terminal events once the
// buffer exceeds its byte cap (spec.md §4.10). Must be called with mu
// held.
func (t *Tracker) evictIfOverCapLocked() {
	for t.bufferBytes > t.bufferCap {
		idx := -1
		for i, e := range t.events {
			if !e.Kind.terminal() {
				idx = i
				break
			}
		}
		if idx == -1 {
			return // nothing left to evict; terminal events are kept regardless of cap
		}
		t.bufferBytes -= t.events[idx].approxBytes
		t.events = append(t.events[:idx], t.events[idx+1:]...)
	}
}

func approxSize(e Event) int {
	return len(e.Chunk) + len(e.Err) + 64 // fixed-field overhead estimate
}
