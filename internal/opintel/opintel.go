// Package opintel implements the Operation Intelligence Coordinator
// (spec.md §3, §4.5 C14): fusing the five HelperScores the Parallel
// Helper Coordinator (C10) returns into one UnifiedScore via weighted
// aggregation in the fixed fold order domain.HelperOrder.
package opintel

import (
	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

// DefaultWeights are the spec's default per-helper weights (spec.md
// §3): Indexer 0.30, Retriever 0.20, Recognizer 0.25, Analyzer 0.15,
// Synthesizer 0.10.
func DefaultWeights() map[domain.HelperName]float64 {
	return map[domain.HelperName]float64{
		domain.HelperIndexer:     0.30,
		domain.HelperRetriever:   0.20,
		domain.HelperRecognizer:  0.25,
		domain.HelperAnalyzer:    0.15,
		domain.HelperSynthesizer: 0.10,
	}
}

// Fuse computes UnifiedScore.{confidence,risk} = clamp(Σ wᵢ·{cᵢ,rᵢ}, 0, 100),
// folding helpers in domain.HelperOrder for determinism. weights, if
// nil or empty, default to DefaultWeights; any weights supplied are
// renormalized to sum to 1.0 over the helpers present in result.Scores
// (spec.md §4.5: "wᵢ come from UserPreferences, renormalized to sum 1.0").
func Fuse(result domain.MergedHelperResult, weights map[domain.HelperName]float64) domain.UnifiedScore {
	w := normalizedWeights(weights, result.Scores)

	var confidence, risk float64
	for _, name := range domain.HelperOrder {
		score, ok := result.Scores[name]
		if !ok {
			continue
		}
		confidence += w[name] * score.Confidence
		risk += w[name] * score.Risk
	}

	return domain.UnifiedScore{
		Confidence: clamp(confidence, 0, 100),
		Risk:       clamp(risk, 0, 100),
	}
}

// normalizedWeights renormalizes weights (or the package defaults) to
// sum to 1.0 across exactly the helpers present in scores, so a
// partial MergedHelperResult (e.g. one helper never registered) still
// fuses to a sane UnifiedScore.
func normalizedWeights(weights map[domain.HelperName]float64, scores map[domain.HelperName]domain.HelperScore) map[domain.HelperName]float64 {
	if len(weights) == 0 {
		weights = DefaultWeights()
	}

	var total float64
	for name := range scores {
		total += weights[name]
	}
	if total <= 0 {
		// No overlap between supplied weights and present scores; fall
		// back to an equal split so Fuse never silently zeroes out.
		n := float64(len(scores))
		if n == 0 {
			return map[domain.HelperName]float64{}
		}
		out := make(map[domain.HelperName]float64, len(scores))
		for name := range scores {
			out[name] = 1.0 / n
		}
		return out
	}

	out := make(map[domain.HelperName]float64, len(scores))
	for name := range scores {
		out[name] = weights[name] / total
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
