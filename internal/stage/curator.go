package stage

import (
	"context"
	"regexp"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
)

var (
	headingSpacingRE = regexp.MustCompile(`(?m)^(#{1,6})([^ #\n])`)
	fenceLineRE      = regexp.MustCompile("^```")
	unlabeledFenceRE = regexp.MustCompile(`^` + "```" + `[ \t]*$`)
	bulletGlyphRE    = regexp.MustCompile(`(?m)^(\s*)[*+](\s)`)
	blankRunRE       = regexp.MustCompile(`\n{3,}`)
)

// NormalizeFormatting applies the deterministic formatting pass
// spec.md §4.4 fixes for the Curator, in the order given: heading
// spacing, unlabeled fence labeling, bullet-glyph unification, then
// blank-line collapsing.
func NormalizeFormatting(text string) string {
	text = headingSpacingRE.ReplaceAllString(text, "$1 $2")
	text = labelUnlabeledFences(text)
	text = bulletGlyphRE.ReplaceAllString(text, "$1-$2")
	text = blankRunRE.ReplaceAllString(text, "\n\n")
	return text
}

// labelUnlabeledFences rewrites an unlabeled ``` opening a code block
// to ```text, leaving its closing fence untouched. Fence lines
// alternate open/close, so a line is only a candidate for labeling
// when it opens a block currently not in progress.
func labelUnlabeledFences(text string) string {
	lines := strings.Split(text, "\n")
	inFence := false
	for i, line := range lines {
		if !fenceLineRE.MatchString(line) {
			continue
		}
		if !inFence && unlabeledFenceRE.MatchString(line) {
			lines[i] = "```text"
		}
		inFence = !inFence
	}
	return strings.Join(lines, "\n")
}

// Curator is the final stage runner: normalizes the Validator's
// output deterministically, then runs the curator prompt to produce
// the final polished answer.
type Curator struct {
	base
}

// NewCurator constructs a Curator stage runner.
func NewCurator(client modelclient.ModelClient, prices *modelclient.PriceTable) *Curator {
	return &Curator{base: base{stage: domain.StageCurator, client: client, prices: prices}}
}

func (c *Curator) Stage() domain.Stage { return domain.StageCurator }

func (c *Curator) Run(ctx context.Context, in Input) (domain.StageResult, error) {
	return timed(in.ProgressSink, domain.StageCurator, func() (domain.StageResult, error) {
		normalized := NormalizeFormatting(in.UpstreamAnswer)

		var sb strings.Builder
		sb.WriteString("Produce the final, polished answer from the validated text below. " +
			"Preserve its meaning; improve only presentation.")
		if in.InjectedContext != "" {
			sb.WriteString("\n\n" + in.InjectedContext)
		}

		messages := []modelclient.Message{
			{Role: modelclient.RoleSystem, Content: sb.String()},
			{Role: modelclient.RoleUser, Content: normalized},
		}
		return c.runModel(ctx, in, messages, temperatureFor(in.Profile, domain.StageCurator))
	})
}
