// Package synth implements the Knowledge Synthesizer helper (spec.md
// §4 C9): extracts insights and recommendations from a curator output.
package synth

import (
	"regexp"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

var (
	bulletRE        = regexp.MustCompile(`(?m)^\s*[-*]\s+(.*)$`)
	recommendVerbRE = regexp.MustCompile(`(?i)\b(should|recommend|consider|use|avoid|prefer)\b`)
	sentenceSplitRE = regexp.MustCompile(`[.!?]\s+`)
)

// Synthesis is the extracted content: insights are declarative
// statements, recommendations are sentences carrying an
// advisory/imperative verb.
type Synthesis struct {
	Insights        []string
	Recommendations []string
}

// Synthesizer extracts insights/recommendations and emits a
// HelperScore reflecting how substantive the curator output was.
type Synthesizer struct{}

func New() *Synthesizer { return &Synthesizer{} }

// Extract pulls bullet-list items and recommendation-bearing sentences
// out of curator output text.
func (s *Synthesizer) Extract(curatorAnswer string) Synthesis {
	var insights, recommendations []string

	for _, m := range bulletRE.FindAllStringSubmatch(curatorAnswer, -1) {
		item := strings.TrimSpace(m[1])
		if item == "" {
			continue
		}
		if recommendVerbRE.MatchString(item) {
			recommendations = append(recommendations, item)
		} else {
			insights = append(insights, item)
		}
	}

	for _, sentence := range sentenceSplitRE.Split(curatorAnswer, -1) {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if recommendVerbRE.MatchString(sentence) && !containsAny(recommendations, sentence) {
			recommendations = append(recommendations, sentence)
		}
	}

	return Synthesis{Insights: insights, Recommendations: recommendations}
}

func containsAny(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
}

// Score produces a HelperScore for the synthesis: confidence tracks
// how much substantive content was extractable, risk is low by
// construction (synthesis never flags danger on its own — it informs,
// it doesn't gate).
func (s *Synthesizer) Score(curatorAnswer string) domain.HelperScore {
	synthesis := s.Extract(curatorAnswer)
	total := len(synthesis.Insights) + len(synthesis.Recommendations)

	confidence := 40.0
	switch {
	case total >= 5:
		confidence = 90
	case total >= 3:
		confidence = 75
	case total >= 1:
		confidence = 60
	}

	return domain.HelperScore{
		Confidence: confidence,
		Risk:       0,
		Metrics: map[string]interface{}{
			"insights_count":        len(synthesis.Insights),
			"recommendations_count": len(synthesis.Recommendations),
		},
	}
}
