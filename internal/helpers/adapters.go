package helpers

import (
	"context"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/knowledge"
	"github.com/hivetechs-collective/hive-consensus/internal/pattern"
	"github.com/hivetechs-collective/hive-consensus/internal/quality"
	"github.com/hivetechs-collective/hive-consensus/internal/retriever"
	"github.com/hivetechs-collective/hive-consensus/internal/synth"
)

// IndexerHelper adapts the Knowledge Indexer (C5) to the Helper
// signature: for proposed operations it averages
// predict_operation_success across them; for a bare curator output
// evaluation (no operations) it returns a neutral prior, since C5 has
// no outcome history to judge a still-unexecuted answer against.
func IndexerHelper(idx *knowledge.BoundPredictor) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		if len(input.Operations) == 0 {
			return neutralPrior, nil
		}

		var probSum float64
		var sampleSum int
		for _, op := range input.Operations {
			prob, sampleSize, err := idx.Predict(ctx, op, input.OpContext)
			if err != nil {
				return domain.HelperScore{}, domain.HelperError{Kind: domain.HelperErrInternal, Message: err.Error()}
			}
			probSum += prob
			sampleSum += sampleSize
		}
		meanProb := probSum / float64(len(input.Operations))

		return domain.HelperScore{
			Confidence: meanProb * 100,
			Risk:       (1 - meanProb) * 100,
			Metrics: map[string]interface{}{
				"sample_size": sampleSum,
			},
		}, nil
	}
}

// RetrieverHelper adapts the Context Retriever (C6): confidence tracks
// how much relevant precedent exists for the question/operations.
func RetrieverHelper(r *retriever.Retriever) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		var precedentCount int
		var successRate *float64

		if len(input.Operations) > 0 {
			analysis, err := r.AnalyzeOperationContext(ctx, input.Operations, input.OpContext)
			if err != nil {
				return domain.HelperScore{}, domain.HelperError{Kind: domain.HelperErrInternal, Message: err.Error()}
			}
			precedentCount = len(analysis.RelevantPrecedents)
			if analysis.SuccessRateAnalysis != nil {
				successRate = &analysis.SuccessRateAnalysis.SuccessProbability
			}
		} else {
			sc, err := r.GetStageContext(ctx, domain.StageCurator, input.Question, 2000)
			if err != nil {
				return domain.HelperScore{}, domain.HelperError{Kind: domain.HelperErrInternal, Message: err.Error()}
			}
			precedentCount = len(sc.Precedents)
		}

		confidence := 40.0
		switch {
		case precedentCount >= 10:
			confidence = 90
		case precedentCount >= 5:
			confidence = 75
		case precedentCount >= 1:
			confidence = 60
		}
		risk := 100 - confidence
		if successRate != nil {
			risk = (1 - *successRate) * 100
		}

		return domain.HelperScore{
			Confidence: confidence,
			Risk:       risk,
			Metrics:    map[string]interface{}{"precedent_count": precedentCount},
		}, nil
	}
}

// RecognizerHelper adapts the Pattern Recognizer (C7).
func RecognizerHelper(r *pattern.Recognizer) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		return r.Classify(input.Operations), nil
	}
}

// AnalyzerHelper adapts the Quality Analyzer (C8). For operations it
// assesses them directly; for a bare curator output it scores the
// answer text itself as an artifact.
func AnalyzerHelper(a *quality.Analyzer) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		if len(input.Operations) > 0 {
			return a.AssessOperations(input.Operations), nil
		}
		s := quality.ScoreArtifact("curator-output.md", input.CuratorOutput)
		return domain.HelperScore{
			Confidence: s.Overall * 100,
			Risk:       (1 - s.Overall) * 100,
			Metrics: map[string]interface{}{
				"structure": s.Structure,
				"docs":      s.Docs,
			},
		}, nil
	}
}

// SynthesizerHelper adapts the Knowledge Synthesizer (C9).
func SynthesizerHelper(s *synth.Synthesizer) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		return s.Score(input.CuratorOutput), nil
	}
}
