package stage

import (
	"context"
	"fmt"
	"strings"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
	"github.com/hivetechs-collective/hive-consensus/internal/retriever"
	"github.com/hivetechs-collective/hive-consensus/internal/temporal"
)

// generatorBudgetTokens bounds how much repository context the
// Generator prompt will accept from the Context Retriever (C6).
const generatorBudgetTokens = 1500

// Generator is the first stage runner: builds the system+user message,
// optionally prepending Repository and/or Temporal context per the
// active profile's ContextStrategy, and streams the model's answer.
type Generator struct {
	base
	Retriever *retriever.Retriever // nil if RepositoryOnly/Both/Semantic never used
	Temporal  *temporal.Provider   // nil if TemporalOnly/Both never used
}

// NewGenerator constructs a Generator stage runner.
func NewGenerator(client modelclient.ModelClient, prices *modelclient.PriceTable, r *retriever.Retriever, t *temporal.Provider) *Generator {
	return &Generator{
		base:      base{stage: domain.StageGenerator, client: client, prices: prices},
		Retriever: r,
		Temporal:  t,
	}
}

func (g *Generator) Stage() domain.Stage { return domain.StageGenerator }

func (g *Generator) Run(ctx context.Context, in Input) (domain.StageResult, error) {
	return timed(in.ProgressSink, domain.StageGenerator, func() (domain.StageResult, error) {
		systemMsg, err := g.buildSystemMessage(ctx, in)
		if err != nil {
			return domain.StageResult{}, err
		}

		messages := []modelclient.Message{
			{Role: modelclient.RoleSystem, Content: systemMsg},
			{Role: modelclient.RoleUser, Content: in.Question},
		}
		return g.runModel(ctx, in, messages, temperatureFor(in.Profile, domain.StageGenerator))
	})
}

func (g *Generator) buildSystemMessage(ctx context.Context, in Input) (string, error) {
	var sb strings.Builder
	sb.WriteString("You are the Generator stage of a multi-stage reasoning pipeline. " +
		"Produce a thorough first-pass answer to the user's question.")

	strategy := in.Profile.ContextStrategy
	includeRepo := strategy == domain.ContextRepositoryOnly || strategy == domain.ContextBoth || strategy == domain.ContextSemantic
	includeTemporal := strategy == domain.ContextTemporalOnly || strategy == domain.ContextBoth

	if includeRepo && g.Retriever != nil {
		stageCtx, err := g.Retriever.GetStageContext(ctx, domain.StageGenerator, in.Question, generatorBudgetTokens)
		if err != nil {
			return "", err
		}
		if len(stageCtx.Precedents) > 0 {
			sb.WriteString("\n\nRelevant repository context:\n")
			for _, p := range stageCtx.Precedents {
				sb.WriteString(fmt.Sprintf("- %s\n", truncate(p.Content, 400)))
			}
		}
	}

	if includeTemporal && g.Temporal != nil && g.Temporal.RequiresTemporalContext(in.Question) {
		tc := g.Temporal.BuildCurrentContext()
		sb.WriteString("\n\n" + tc.TemporalAwarenessText)
		sb.WriteString("\n" + tc.SearchInstruction)
	}

	if in.InjectedContext != "" {
		sb.WriteString("\n\n" + in.InjectedContext)
	}

	return sb.String(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
