package stage

import (
	"context"
	"regexp"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
)

// AnswerType is the Refiner's closed classification of the Generator's
// answer (spec.md §4.4).
type AnswerType string

const (
	AnswerCode        AnswerType = "code"
	AnswerExplanation AnswerType = "explanation"
	AnswerAnalysis    AnswerType = "analysis"
	AnswerList        AnswerType = "list"
	AnswerOther       AnswerType = "other"
)

var (
	codeFenceRE   = regexp.MustCompile("```")
	explanationRE = regexp.MustCompile(`(?i)\b(because|therefore)\b`)
	analysisRE    = regexp.MustCompile(`(?i)\b(analyze|analyse|examine)\b`)
	bulletLineRE  = regexp.MustCompile(`(?m)^\s*[-*+]\s`)
)

// ClassifyAnswer applies the closed ruleset spec.md §4.4 fixes, in
// priority order: fenced code, then because/therefore, then
// analyze/examine, then a bullet-list of 3+ lines, else other.
func ClassifyAnswer(answer string) AnswerType {
	if codeFenceRE.MatchString(answer) {
		return AnswerCode
	}
	if explanationRE.MatchString(answer) {
		return AnswerExplanation
	}
	if analysisRE.MatchString(answer) {
		return AnswerAnalysis
	}
	if len(bulletLineRE.FindAllString(answer, -1)) >= 3 {
		return AnswerList
	}
	return AnswerOther
}

var refinementPrompts = map[AnswerType]string{
	AnswerCode:        "Refine the code below: fix bugs, tighten style, and ensure every fenced block is complete.",
	AnswerExplanation: "Refine the explanation below: sharpen the causal chain and remove redundant reasoning.",
	AnswerAnalysis:    "Refine the analysis below: strengthen the evidence for each claim and resolve ambiguity.",
	AnswerList:        "Refine the list below: merge duplicates, order by importance, and ensure parallel phrasing.",
	AnswerOther:       "Refine the answer below for clarity and correctness.",
}

// Refiner is the second stage runner: classifies the Generator's
// answer type and selects a matching refinement prompt.
type Refiner struct {
	base
}

// NewRefiner constructs a Refiner stage runner.
func NewRefiner(client modelclient.ModelClient, prices *modelclient.PriceTable) *Refiner {
	return &Refiner{base: base{stage: domain.StageRefiner, client: client, prices: prices}}
}

func (r *Refiner) Stage() domain.Stage { return domain.StageRefiner }

func (r *Refiner) Run(ctx context.Context, in Input) (domain.StageResult, error) {
	return timed(in.ProgressSink, domain.StageRefiner, func() (domain.StageResult, error) {
		answerType := ClassifyAnswer(in.UpstreamAnswer)
		prompt := refinementPrompts[answerType]

		var sb strings.Builder
		sb.WriteString(prompt)
		if in.InjectedContext != "" {
			sb.WriteString("\n\n" + in.InjectedContext)
		}

		messages := []modelclient.Message{
			{Role: modelclient.RoleSystem, Content: sb.String()},
			{Role: modelclient.RoleUser, Content: in.UpstreamAnswer},
		}
		return r.runModel(ctx, in, messages, temperatureFor(in.Profile, domain.StageRefiner))
	})
}
