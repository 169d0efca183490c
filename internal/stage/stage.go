// Package stage implements the four Stage Runners (spec.md §4.4 C11):
// Generator, Refiner, Validator, Curator. All four share a single
// run(stage_input) -> StageResult contract, a retry policy over
// internal/resilience, and the per-stage quality-score formula.
package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/engineerr"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
	"github.com/hivetechs-collective/hive-consensus/internal/progress"
	"github.com/hivetechs-collective/hive-consensus/internal/resilience"
)

// Input is the shared contract every stage runner receives (spec.md
// §4.4: "stage_input = {question, upstream_answer?, injected_context,
// profile, progress_sink}").
type Input struct {
	Question        string
	UpstreamAnswer  string
	InjectedContext string // pre-rendered Repository/Temporal/Semantic context, empty if none
	Profile         domain.ConsensusProfile
	ProgressSink    *progress.Tracker
}

// Runner is the uniform shape all four stage runners satisfy.
type Runner interface {
	Stage() domain.Stage
	Run(ctx context.Context, in Input) (domain.StageResult, error)
}

// base holds what every runner needs: the model client, pricing, and
// retry config. Concrete runners embed it and supply their own prompt
// construction + validation logic.
type base struct {
	stage  domain.Stage
	client modelclient.ModelClient
	prices *modelclient.PriceTable
}

func retryConfig(profile domain.ConsensusProfile) *resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	if profile.Retry.MaxAttempts > 0 {
		cfg.MaxAttempts = profile.Retry.MaxAttempts
	}
	return cfg
}

// runModel streams one completion, retrying on Transient stream errors
// per spec.md §4.4, and reports chunks/quality to the progress sink.
// buildMessages/modelID are supplied by the concrete stage; the
// returned StageResult always carries b.stage.
func (b *base) runModel(ctx context.Context, in Input, messages []modelclient.Message, temperature float32) (domain.StageResult, error) {
	modelID := resolveModelID(in.Profile, b.stage)

	var answer string
	var usage modelclient.Usage
	var finishReason string

	attemptErr := resilience.Retry(ctx, retryConfig(in.Profile), func() error {
		ch, err := b.client.Stream(ctx, modelclient.Request{
			ModelID:     modelID,
			Messages:    messages,
			Temperature: temperature,
		})
		if err != nil {
			return engineerr.New(fmt.Sprintf("stage.%s.stream", b.stage), "Transient",
				fmt.Errorf("%w: %v", engineerr.ErrTransport, err))
		}

		a, u, fr, streamErr := modelclient.Collect(ctx, ch, func(text string) {
			if in.ProgressSink != nil {
				in.ProgressSink.ChunkArrived(b.stage, text)
			}
		})
		if streamErr != nil {
			if streamErr.ErrKind == modelclient.ErrorPermanent {
				return fmt.Errorf("stage %s permanent failure: %s", b.stage, streamErr.ErrMessage)
			}
			return fmt.Errorf("%w: %s", engineerr.ErrTransport, streamErr.ErrMessage)
		}
		answer, usage, finishReason = a, u, fr
		return nil
	})

	if attemptErr != nil {
		return domain.StageResult{
			Stage:  b.stage,
			Answer: "",
			Analytics: domain.StageAnalytics{
				ErrorCount: 1,
			},
		}, fmt.Errorf("%w: stage %s: %v", engineerr.ErrStageFailure, b.stage, attemptErr)
	}

	quality := scoreQuality(answer)
	cost := 0.0
	if b.prices != nil {
		cost = b.prices.Cost(modelID, usage)
	}

	return domain.StageResult{
		Stage:   b.stage,
		ModelID: modelID,
		Answer:  answer,
		Usage: domain.TokenUsage{
			PromptTokens:     usage.PromptTokens,
			CompletionTokens: usage.CompletionTokens,
		},
		Analytics: domain.StageAnalytics{
			QualityScore: quality,
			CostUSD:      cost,
			Provider:     finishReason,
		},
	}, nil
}

func resolveModelID(profile domain.ConsensusProfile, s domain.Stage) string {
	sel, ok := profile.Models[s]
	if !ok || sel.Fixed == "" {
		return "default"
	}
	return sel.Fixed
}

func temperatureFor(profile domain.ConsensusProfile, s domain.Stage) float32 {
	if t, ok := profile.Temperatures[s]; ok {
		return t
	}
	return 0.7
}

// StartTiming wraps a stage run with duration accounting and the
// progress-sink start/complete events, shared by all four concrete
// runners' exported Run methods.
func timed(sink *progress.Tracker, s domain.Stage, fn func() (domain.StageResult, error)) (domain.StageResult, error) {
	if sink != nil {
		sink.StageStarted(s)
	}
	start := time.Now()
	result, err := fn()
	result.Analytics.DurationMS = time.Since(start).Milliseconds()

	if sink != nil {
		if err != nil {
			sink.PipelineFailed(err)
		} else {
			sink.StageCompleted(s, result.Analytics.QualityScore, result.Usage.PromptTokens+result.Usage.CompletionTokens, result.Analytics.CostUSD)
		}
	}
	return result, err
}
