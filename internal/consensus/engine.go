// Package consensus implements the Consensus Engine (spec.md §4.6
// C13): the top-level process() entry point that drives the four
// Stage Runners in sequence, decides context injection before the
// Generator, and fires a best-effort background indexing task after
// the Curator.
package consensus

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
	"github.com/hivetechs-collective/hive-consensus/internal/knowledge"
	"github.com/hivetechs-collective/hive-consensus/internal/progress"
	"github.com/hivetechs-collective/hive-consensus/internal/stage"
)

// Engine drives one consensus run at a time's worth of sequential
// stage execution; multiple Engines (or concurrent process() calls on
// one Engine, which is safe since no mutable state is shared across
// calls beyond the background-index semaphore) may run concurrently.
type Engine struct {
	generator *stage.Generator
	refiner   *stage.Refiner
	validator *stage.Validator
	curator   *stage.Curator

	indexer *knowledge.Indexer

	indexSem chan struct{} // bounds background indexing (spec.md §5 default 16 permits)
	logger   gomindlog.Logger
}

// New constructs an Engine from its four stage runners and the
// knowledge indexer used for post-Curator background indexing.
// backgroundIndexPermits bounds concurrent background indexing tasks.
func New(gen *stage.Generator, ref *stage.Refiner, val *stage.Validator, cur *stage.Curator, indexer *knowledge.Indexer, backgroundIndexPermits int, logger gomindlog.Logger) *Engine {
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	if backgroundIndexPermits <= 0 {
		backgroundIndexPermits = 16
	}
	return &Engine{
		generator: gen,
		refiner:   ref,
		validator: val,
		curator:   cur,
		indexer:   indexer,
		indexSem:  make(chan struct{}, backgroundIndexPermits),
		logger:    logger,
	}
}

// Process runs the four-stage pipeline in order, wiring each runner's
// answer into the next's upstream_answer (spec.md §4.6). conversationID
// identifies the run for background indexing; progressSink (may be
// nil) receives the typed event sequence.
func (e *Engine) Process(ctx context.Context, req domain.ConsensusRequest, conversationID string, sink *progress.Tracker) domain.ConsensusResult {
	start := time.Now()
	result := domain.ConsensusResult{Success: true}

	runners := []stage.Runner{e.generator, e.refiner, e.validator, e.curator}
	var upstream string
	var totalTokens int
	var totalCost float64
	var modelsUsed []string

	for i, runner := range runners {
		select {
		case <-ctx.Done():
			result.Success = false
			result.FailedStage = stageAt(i)
			result.FailReason = "canceled"
			result.FinalAnswer = upstream
			result.Metadata = rollup(result.Stages, start)
			return result
		default:
		}

		in := stage.Input{
			Question:        req.Query,
			UpstreamAnswer:  upstream,
			InjectedContext: req.ExternalContext,
			Profile:         req.Profile,
			ProgressSink:    sink,
		}

		sr, err := runner.Run(ctx, in)
		if err != nil {
			result.Success = false
			result.FailedStage = sr.Stage
			result.FailReason = err.Error()
			result.FinalAnswer = upstream // last successful stage's answer, if any
			result.Stages = append(result.Stages, sr)
			result.Metadata = rollup(result.Stages, start)
			return result
		}

		result.Stages = append(result.Stages, sr)
		upstream = sr.Answer
		totalTokens += sr.Usage.PromptTokens + sr.Usage.CompletionTokens
		totalCost += sr.Analytics.CostUSD
		if sr.ModelID != "" {
			modelsUsed = append(modelsUsed, sr.ModelID)
		}
	}

	result.FinalAnswer = upstream
	result.Metadata = domain.ConsensusMetadata{
		DurationMS:  time.Since(start).Milliseconds(),
		TotalTokens: totalTokens,
		CostUSD:     totalCost,
		ModelsUsed:  modelsUsed,
	}

	if sink != nil {
		sink.PipelineCompleted()
	}

	e.fireBackgroundIndex(result.FinalAnswer, req.Query, conversationID)

	return result
}

// fireBackgroundIndex launches index_output as a detached task bounded
// by the engine's semaphore; failure never affects the already-returned
// result (spec.md §4.6).
func (e *Engine) fireBackgroundIndex(answer, question, conversationID string) {
	if e.indexer == nil || answer == "" {
		return
	}

	select {
	case e.indexSem <- struct{}{}:
	default:
		e.logger.Warn("background index semaphore exhausted, dropping index_output", map[string]interface{}{
			"conversation_id": conversationID,
		})
		return
	}

	go func() {
		defer func() { <-e.indexSem }()
		bgCtx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		if _, err := e.indexer.IndexOutput(bgCtx, answer, question, conversationID); err != nil {
			e.logger.Warn("background index_output failed", map[string]interface{}{
				"conversation_id": conversationID,
				"error":           err.Error(),
			})
		}
	}()
}

// NewConversationID generates a fresh conversation identifier for
// callers that don't already track one.
func NewConversationID() string {
	return uuid.NewString()
}

func stageAt(i int) domain.Stage {
	if i < len(domain.Stages) {
		return domain.Stages[i]
	}
	return domain.StageCurator
}

func rollup(stages []domain.StageResult, start time.Time) domain.ConsensusMetadata {
	var tokens int
	var cost float64
	var models []string
	for _, s := range stages {
		tokens += s.Usage.PromptTokens + s.Usage.CompletionTokens
		cost += s.Analytics.CostUSD
		if s.ModelID != "" {
			models = append(models, s.ModelID)
		}
	}
	return domain.ConsensusMetadata{
		DurationMS:  time.Since(start).Milliseconds(),
		TotalTokens: tokens,
		CostUSD:     cost,
		ModelsUsed:  models,
	}
}

