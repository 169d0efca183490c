// Package quality implements the Quality Analyzer helper (spec.md §4
// C8): scores code artifacts on structure/docs/tests/complexity and
// risk-assesses a proposed set of file operations.
package quality

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

var (
	headingRE    = regexp.MustCompile(`(?m)^#{1,6}\s`)
	codeFenceRE  = regexp.MustCompile("```")
	docCommentRE = regexp.MustCompile(`(?m)^\s*(//|#|/\*)`)
	funcRE       = regexp.MustCompile(`(?m)^func\s+\w`)
)

// ArtifactScore is the structure/docs/tests/complexity breakdown,
// each in [0,1], plus the weighted overall score.
type ArtifactScore struct {
	Structure  float64
	Docs       float64
	Tests      float64
	Complexity float64
	Overall    float64
}

// ScoreArtifact scores a code or text artifact. Structure rewards
// headings/fences/function declarations; Docs rewards a comment-to-code
// ratio; Tests rewards presence of test-looking content; Complexity
// rewards shorter functions (fewer lines per func as a proxy, since no
// AST is available without a parser dependency per artifact language).
func ScoreArtifact(path, content string) ArtifactScore {
	lines := strings.Split(content, "\n")
	nonEmpty := 0
	docLines := 0
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		nonEmpty++
		if docCommentRE.MatchString(l) {
			docLines++
		}
	}

	structure := 0.0
	if headingRE.MatchString(content) {
		structure += 0.5
	}
	if codeFenceRE.MatchString(content) || funcRE.MatchString(content) {
		structure += 0.5
	}

	docs := 0.0
	if nonEmpty > 0 {
		docs = float64(docLines) / float64(nonEmpty)
		if docs > 1 {
			docs = 1
		}
	}

	tests := 0.0
	base := strings.ToLower(filepath.Base(path))
	if strings.Contains(base, "_test.") || strings.Contains(content, "func Test") {
		tests = 1
	}

	complexity := complexityScore(content)

	overall := clamp01(0.3*structure + 0.25*docs + 0.2*tests + 0.25*complexity)

	return ArtifactScore{
		Structure:  structure,
		Docs:       docs,
		Tests:      tests,
		Complexity: complexity,
		Overall:    overall,
	}
}

// complexityScore approximates cyclomatic complexity by counting
// branching keywords per function and scoring inversely: fewer
// branches per line signals a simpler, more maintainable artifact.
func complexityScore(content string) float64 {
	branches := strings.Count(content, "if ") + strings.Count(content, "for ") +
		strings.Count(content, "switch ") + strings.Count(content, "case ") +
		strings.Count(content, "&&") + strings.Count(content, "||")
	lines := len(strings.Split(content, "\n"))
	if lines == 0 {
		return 1
	}
	density := float64(branches) / float64(lines)
	// Density above 0.3 branches/line is treated as maximally complex.
	score := 1 - density/0.3
	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Analyzer scores proposed operations' risk from their content
// quality: low-quality artifacts (sparse structure, no docs, no
// tests, high complexity) raise risk; high quality raises confidence.
type Analyzer struct{}

func New() *Analyzer { return &Analyzer{} }

// AssessOperations produces a HelperScore for a set of proposed
// operations: confidence tracks mean artifact quality, risk is its
// complement scaled into [0,100] plus a bump for operations touching
// no analyzable content (renames/deletes, which quality can't assess).
func (a *Analyzer) AssessOperations(operations []domain.FileOperation) domain.HelperScore {
	if len(operations) == 0 {
		return domain.HelperScore{Confidence: 50, Risk: 50, Metrics: map[string]interface{}{"operations_scanned": 0}}
	}

	var qualitySum float64
	scored := 0
	unscored := 0

	for _, op := range operations {
		switch op.Kind {
		case domain.OpCreate, domain.OpUpdate, domain.OpAppend:
			s := ScoreArtifact(op.Path, op.Content)
			qualitySum += s.Overall
			scored++
		default:
			unscored++
		}
	}

	meanQuality := 0.5
	if scored > 0 {
		meanQuality = qualitySum / float64(scored)
	}

	confidence := meanQuality * 100
	risk := (1 - meanQuality) * 100
	if unscored > 0 {
		risk += 10 * float64(unscored) / float64(len(operations))
		if risk > 100 {
			risk = 100
		}
	}

	return domain.HelperScore{
		Confidence: confidence,
		Risk:       risk,
		Metrics: map[string]interface{}{
			"operations_scanned": len(operations),
			"mean_quality":       meanQuality,
			"unscored_ops":       unscored,
		},
	}
}
