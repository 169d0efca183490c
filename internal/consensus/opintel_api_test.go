package consensus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
	"github.com/hivetechs-collective/hive-consensus/internal/helpers"
	"github.com/hivetechs-collective/hive-consensus/internal/rollback"
)

func fixedHelper(confidence, risk float64) helpers.Helper {
	return func(context.Context, helpers.Input) (domain.HelperScore, error) {
		return domain.HelperScore{Confidence: confidence, Risk: risk}, nil
	}
}

func newTestOperationIntelligence(t *testing.T) *OperationIntelligence {
	t.Helper()
	set := map[domain.HelperName]helpers.Helper{
		domain.HelperIndexer:     fixedHelper(80, 10),
		domain.HelperRetriever:   fixedHelper(70, 20),
		domain.HelperRecognizer:  fixedHelper(90, 5),
		domain.HelperAnalyzer:    fixedHelper(60, 30),
		domain.HelperSynthesizer: fixedHelper(85, 15),
	}
	coord := helpers.New(set, time.Second, 16, time.Minute, nil)
	return NewOperationIntelligence(coord, nil, rollback.New(gomindlog.NoOpLogger{}))
}

func TestScoreOperationsIsPureForFixedInputs(t *testing.T) {
	oi := newTestOperationIntelligence(t)
	ops := []domain.FileOperation{{Kind: domain.OpDelete, Path: "a.txt"}}
	opCtx := domain.OperationContext{RepositoryPath: "/repo"}

	a := oi.ScoreOperations(context.Background(), ops, opCtx)
	b := oi.ScoreOperations(context.Background(), ops, opCtx)
	assert.Equal(t, a, b)
}

func TestDecideDeletionRequiresConfirmationOverride(t *testing.T) {
	oi := newTestOperationIntelligence(t)
	ops := []domain.FileOperation{{Kind: domain.OpDelete, Path: "a.txt"}}
	opCtx := domain.OperationContext{RepositoryPath: "/repo"}
	prefs := domain.UserPreferences{RequireConfirmationForDeletions: true}

	d := oi.Decide(context.Background(), ops, opCtx, domain.ModeAggressive, prefs)
	assert.NotEqual(t, domain.DecisionAutoExecute, d.Kind)
}

func TestExecuteRollbackDryRunReturnsViaOperationIntelligence(t *testing.T) {
	oi := newTestOperationIntelligence(t)
	plan := domain.RollbackPlan{
		PlanID:      "p1",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op1", Action: domain.RollbackAction{Kind: domain.ActionNoOp, Reason: "test"}},
		},
	}

	result, err := oi.ExecuteRollback(context.Background(), plan, true)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.OperationsCompleted)
}
