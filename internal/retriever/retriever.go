// Package retriever implements the Context Retriever (spec.md §4 C6):
// stage-aware ranking and token-budgeted assembly of prompt context
// pulled from the vector store.
package retriever

import (
	"context"
	"fmt"
	"sort"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/embedding"
	"github.com/hivetechs-collective/hive-consensus/internal/engineerr"
	"github.com/hivetechs-collective/hive-consensus/internal/vectorstore"
)

// candidatePoolSize bounds how many nearest neighbors are pulled from
// the vector store before stage-specific re-ranking narrows them down.
const candidatePoolSize = 50

// mmrLambda is the Generator stage's diversity/relevance trade-off
// (spec.md §4.3: "maximize diversity (MMR with λ=0.5)").
const mmrLambda = 0.5

// qualityThreshold is the Refiner stage's minimum precedent quality
// (spec.md §4.3: "prefer precedents with quality_score ≥ 0.7").
const qualityThreshold = 0.7

// Retriever assembles stage-specific StageContext from the vector
// store, grounded on the teacher's retrieval-then-rerank shape used by
// orchestration/default_prompt_builder.go.
type Retriever struct {
	store     vectorstore.Store
	embedder  embedding.Embedder
	predictor Predictor
}

func New(store vectorstore.Store, embedder embedding.Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

// EstimateTokens is the stable token estimator spec.md §4.3 allows
// absent a real tokenizer: character count ÷ 4.
func EstimateTokens(s string) int {
	n := len(s) / 4
	if n == 0 && len(s) > 0 {
		n = 1
	}
	return n
}

// GetStageContext assembles up to budgetTokens worth of precedents
// for the given stage, ranked by the stage's bias.
func (r *Retriever) GetStageContext(ctx context.Context, stage domain.Stage, question string, budgetTokens int) (domain.StageContext, error) {
	queryVec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return domain.StageContext{}, fmt.Errorf("%w: embed query: %v", engineerr.ErrContextUnavailable, err)
	}

	candidates, err := r.store.Search(ctx, queryVec, candidatePoolSize)
	if err != nil {
		return domain.StageContext{}, fmt.Errorf("%w: %v", engineerr.ErrContextUnavailable, err)
	}

	ordered := rankForStage(stage, queryVec, candidates)
	precedents, tokensUsed := fillBudget(ordered, budgetTokens)

	return domain.StageContext{
		Stage:      stage,
		Precedents: precedents,
		TokensUsed: tokensUsed,
	}, nil
}

func rankForStage(stage domain.Stage, queryVec []float32, candidates []vectorstore.Record) []vectorstore.Record {
	switch stage {
	case domain.StageGenerator:
		return mmrRank(queryVec, candidates, mmrLambda)
	case domain.StageRefiner:
		return filterByQuality(candidates, qualityThreshold)
	case domain.StageValidator:
		return rankInverted(queryVec, candidates)
	case domain.StageCurator:
		return rankQualityAndRecency(candidates)
	default:
		return candidates
	}
}

func fillBudget(records []vectorstore.Record, budgetTokens int) ([]domain.IndexedKnowledge, int) {
	var out []domain.IndexedKnowledge
	used := 0
	for _, rec := range records {
		cost := EstimateTokens(rec.Content)
		if used+cost > budgetTokens {
			break
		}
		used += cost
		out = append(out, recordToIndexed(rec))
	}
	return out, used
}

func recordToIndexed(r vectorstore.Record) domain.IndexedKnowledge {
	k := domain.IndexedKnowledge{ID: r.ID, Content: r.Content, Embedding: r.Embedding}
	if q, ok := r.Metadata["quality_score"].(float64); ok {
		k.Metadata.QualityScore = q
	}
	if fp, ok := r.Metadata["file_path"].(string); ok {
		k.Metadata.FilePath = fp
	}
	return k
}

// qualityOf reads a record's quality_score metadata field, defaulting
// to 0 if absent.
func qualityOf(r vectorstore.Record) float64 {
	if q, ok := r.Metadata["quality_score"].(float64); ok {
		return q
	}
	return 0
}

func filterByQuality(candidates []vectorstore.Record, threshold float64) []vectorstore.Record {
	out := make([]vectorstore.Record, 0, len(candidates))
	for _, c := range candidates {
		if qualityOf(c) >= threshold {
			out = append(out, c)
		}
	}
	// Fall back to the unfiltered, similarity-ordered list when nothing
	// clears the bar rather than starving Refiner of all context.
	if len(out) == 0 {
		return candidates
	}
	return out
}

// rankInverted prefers precedents flagged as contradictions/failures:
// records with metadata["contradiction"] == true or
// metadata["outcome"] == "failure" sort first, the remainder follows
// in similarity order.
func rankInverted(queryVec []float32, candidates []vectorstore.Record) []vectorstore.Record {
	type scored struct {
		rec     vectorstore.Record
		flagged bool
		sim     float64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, c := range candidates {
		flagged := false
		if v, ok := c.Metadata["contradiction"].(bool); ok && v {
			flagged = true
		}
		if v, ok := c.Metadata["outcome"].(string); ok && v == "failure" {
			flagged = true
		}
		scoredList = append(scoredList, scored{rec: c, flagged: flagged, sim: vectorstore.CosineSimilarity(queryVec, c.Embedding)})
	}
	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].flagged != scoredList[j].flagged {
			return scoredList[i].flagged
		}
		return scoredList[i].sim > scoredList[j].sim
	})
	out := make([]vectorstore.Record, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.rec
	}
	return out
}

// rankQualityAndRecency orders by quality_score descending, breaking
// ties by timestamp descending (most recent first).
func rankQualityAndRecency(candidates []vectorstore.Record) []vectorstore.Record {
	out := make([]vectorstore.Record, len(candidates))
	copy(out, candidates)
	sort.SliceStable(out, func(i, j int) bool {
		qi, qj := qualityOf(out[i]), qualityOf(out[j])
		if qi != qj {
			return qi > qj
		}
		ti, _ := out[i].Metadata["timestamp"].(string)
		tj, _ := out[j].Metadata["timestamp"].(string)
		return ti > tj
	})
	return out
}
