// Package pattern implements the Pattern Recognizer helper (spec.md §4
// C7): classifies a proposed set of file operations against a
// safety-pattern library, producing a HelperScore.
package pattern

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

// Pattern is one entry in the safety-pattern library: a named
// classifier with its risk contribution when matched. Grounded on the
// Validator stage's closed security-check ruleset (spec.md §4.4) —
// the same destructive-shell/credential shapes, generalized here to
// run over proposed operations rather than model-emitted text.
type Pattern struct {
	Name  string
	Risk  float64 // contribution to risk [0,100] when matched
	Match func(op domain.FileOperation) bool
}

var destructiveShellRE = regexp.MustCompile(`rm\s+-rf\s+/|:\(\)\{.*:\|:&\};:|dd\s+if=|mkfs\.|>\s*/dev/sd`)

var credentialRE = regexp.MustCompile(`(?i)(AKIA[0-9A-Z]{16}|sk-[a-zA-Z0-9]{20,}|-----BEGIN [A-Z ]*PRIVATE KEY-----)`)

var criticalPathRE = regexp.MustCompile(`(^|/)(\.git|\.env|go\.sum|go\.mod)$`)

// DefaultLibrary is the built-in safety-pattern set.
func DefaultLibrary() []Pattern {
	return []Pattern{
		{
			Name: "destructive-shell",
			Risk: 60,
			Match: func(op domain.FileOperation) bool {
				return destructiveShellRE.MatchString(op.Content)
			},
		},
		{
			Name: "hard-coded-credential",
			Risk: 50,
			Match: func(op domain.FileOperation) bool {
				return credentialRE.MatchString(op.Content)
			},
		},
		{
			Name: "critical-path-mutation",
			Risk: 40,
			Match: func(op domain.FileOperation) bool {
				return criticalPathRE.MatchString(op.Path) ||
					(op.Kind == domain.OpRename && criticalPathRE.MatchString(op.From))
			},
		},
		{
			Name: "mass-delete",
			Risk: 30,
			Match: func(op domain.FileOperation) bool {
				return op.Kind == domain.OpDelete && strings.Contains(op.Path, "*")
			},
		},
		{
			Name: "go-build-directive",
			Risk: 10,
			Match: func(op domain.FileOperation) bool {
				return strings.Contains(op.Content, "//go:build") && filepath.Ext(op.Path) == ".go"
			},
		},
	}
}

// Recognizer classifies proposed operations against a pattern library.
type Recognizer struct {
	library []Pattern
}

func New() *Recognizer {
	return &Recognizer{library: DefaultLibrary()}
}

// WithLibrary overrides the pattern set (e.g. for tests or a stricter
// preset).
func (r *Recognizer) WithLibrary(lib []Pattern) *Recognizer {
	r.library = lib
	return r
}

// Classify scores a set of operations: risk accumulates (capped at
// 100) over every matched pattern across every operation; confidence
// reflects how much of the library had an opportunity to match (always
// high here since the library is deterministic and total).
func (r *Recognizer) Classify(operations []domain.FileOperation) domain.HelperScore {
	var risk float64
	matched := map[string]int{}

	for _, op := range operations {
		for _, p := range r.library {
			if p.Match(op) {
				risk += p.Risk
				matched[p.Name]++
			}
		}
	}

	if risk > 100 {
		risk = 100
	}

	confidence := 90.0
	if len(operations) == 0 {
		confidence = 50.0
	}

	metrics := make(map[string]interface{}, len(matched)+1)
	metrics["operations_scanned"] = len(operations)
	for name, count := range matched {
		metrics[name+"_matches"] = count
	}

	return domain.HelperScore{
		Confidence: confidence,
		Risk:       risk,
		Metrics:    metrics,
	}
}
