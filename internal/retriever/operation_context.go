package retriever

import (
	"context"
	"fmt"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/engineerr"
)

// Predictor is the subset of the Knowledge Indexer (C5) the retriever
// needs for analyze_operation_context — kept as a narrow interface
// here rather than importing internal/knowledge directly, so C6 stays
// wireable against any C5 implementation (including a test double).
type Predictor interface {
	Predict(ctx context.Context, op domain.FileOperation, opCtx domain.OperationContext) (successProbability float64, sampleSize int, err error)
}

// WithPredictor attaches a C5 predictor used by AnalyzeOperationContext
// to populate SuccessRateAnalysis. Optional: without one, analysis
// returns precedents only.
func (r *Retriever) WithPredictor(p Predictor) *Retriever {
	r.predictor = p
	return r
}

// AnalyzeOperationContext retrieves precedents relevant to a set of
// proposed file operations and, if a predictor is attached, averages
// its per-operation success-rate predictions (spec.md §4.3).
func (r *Retriever) AnalyzeOperationContext(ctx context.Context, operations []domain.FileOperation, opCtx domain.OperationContext) (domain.OperationContextAnalysis, error) {
	queryVec, err := r.embedder.Embed(ctx, opCtx.UserQuestion)
	if err != nil {
		return domain.OperationContextAnalysis{}, fmt.Errorf("%w: embed operation context: %v", engineerr.ErrContextUnavailable, err)
	}

	candidates, err := r.store.Search(ctx, queryVec, candidatePoolSize)
	if err != nil {
		return domain.OperationContextAnalysis{}, fmt.Errorf("%w: %v", engineerr.ErrContextUnavailable, err)
	}

	precedents := make([]domain.IndexedKnowledge, 0, len(candidates))
	for _, c := range candidates {
		precedents = append(precedents, recordToIndexed(c))
	}

	analysis := domain.OperationContextAnalysis{RelevantPrecedents: precedents}

	if r.predictor != nil && len(operations) > 0 {
		var probSum float64
		var sampleSum int
		for _, op := range operations {
			prob, sampleSize, err := r.predictor.Predict(ctx, op, opCtx)
			if err != nil {
				continue
			}
			probSum += prob
			sampleSum += sampleSize
		}
		analysis.SuccessRateAnalysis = &domain.SuccessRateAnalysis{
			SuccessProbability: probSum / float64(len(operations)),
			SampleSize:         sampleSum,
		}
	}

	return analysis, nil
}
