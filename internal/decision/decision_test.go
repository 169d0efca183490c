package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func TestDecideConservativeAutoExecute(t *testing.T) {
	d := Decide(domain.UnifiedScore{Confidence: 95, Risk: 5}, nil, domain.ModeConservative, domain.UserPreferences{}, domain.OperationContext{})
	assert.Equal(t, domain.DecisionAutoExecute, d.Kind)
}

func TestDecideConservativeBlocksOnHighRisk(t *testing.T) {
	d := Decide(domain.UnifiedScore{Confidence: 95, Risk: 45}, nil, domain.ModeConservative, domain.UserPreferences{}, domain.OperationContext{})
	assert.Equal(t, domain.DecisionBlock, d.Kind)
}

func TestDecideConservativeMiddleRequiresConfirmation(t *testing.T) {
	d := Decide(domain.UnifiedScore{Confidence: 50, Risk: 20}, nil, domain.ModeConservative, domain.UserPreferences{}, domain.OperationContext{})
	assert.Equal(t, domain.DecisionRequireConfirmation, d.Kind)
}

func TestDecideAggressiveAutoExecute(t *testing.T) {
	d := Decide(domain.UnifiedScore{Confidence: 65, Risk: 35}, nil, domain.ModeAggressive, domain.UserPreferences{}, domain.OperationContext{})
	assert.Equal(t, domain.DecisionAutoExecute, d.Kind)
}

func TestDecidePlanNeverAutoExecutes(t *testing.T) {
	d := Decide(domain.UnifiedScore{Confidence: 100, Risk: 0}, nil, domain.ModePlan, domain.UserPreferences{}, domain.OperationContext{})
	assert.Equal(t, domain.DecisionRequireConfirmation, d.Kind)
}

func TestDecideManualNeverAutoExecutesOrBlocksWithoutRule(t *testing.T) {
	d := Decide(domain.UnifiedScore{Confidence: 100, Risk: 100}, nil, domain.ModeManual, domain.UserPreferences{}, domain.OperationContext{})
	assert.Equal(t, domain.DecisionRequireConfirmation, d.Kind)
}

func TestDecideDeletionOverrideDowngradesAutoExecute(t *testing.T) {
	ops := []domain.FileOperation{{Kind: domain.OpDelete, Path: "a.go"}}
	prefs := domain.UserPreferences{RequireConfirmationForDeletions: true}

	d := Decide(domain.UnifiedScore{Confidence: 95, Risk: 5}, ops, domain.ModeConservative, prefs, domain.OperationContext{})

	assert.Equal(t, domain.DecisionRequireConfirmation, d.Kind)
	assert.Contains(t, d.Reasons, "deletion requires confirmation")
}

func TestDecideMassUpdateOverrideDowngradesAutoExecute(t *testing.T) {
	ops := make([]domain.FileOperation, 10)
	for i := range ops {
		ops[i] = domain.FileOperation{Kind: domain.OpUpdate, Path: "f.go"}
	}
	prefs := domain.UserPreferences{RequireConfirmationForMassUpdates: true}

	d := Decide(domain.UnifiedScore{Confidence: 95, Risk: 5}, ops, domain.ModeConservative, prefs, domain.OperationContext{})

	assert.Equal(t, domain.DecisionRequireConfirmation, d.Kind)
}

func TestDecideCustomRuleCanBlockButNotUpgrade(t *testing.T) {
	prefs := domain.UserPreferences{
		CustomRules: []domain.CustomRule{
			{
				Name:      "always-block",
				Predicate: func(ops []domain.FileOperation, u domain.UnifiedScore, c domain.OperationContext) bool { return true },
				Block:     true,
				Reason:    "test forces block",
			},
		},
	}

	d := Decide(domain.UnifiedScore{Confidence: 95, Risk: 5}, nil, domain.ModeConservative, prefs, domain.OperationContext{})
	assert.Equal(t, domain.DecisionBlock, d.Kind)

	// A custom rule targeting RequireConfirmation must not upgrade an
	// already-Blocked decision back down.
	prefs2 := domain.UserPreferences{
		CustomRules: []domain.CustomRule{
			{
				Name:      "soft-rule",
				Predicate: func(ops []domain.FileOperation, u domain.UnifiedScore, c domain.OperationContext) bool { return true },
				Block:     false,
				Reason:    "soft",
			},
		},
	}
	d2 := Decide(domain.UnifiedScore{Confidence: 95, Risk: 45}, nil, domain.ModeConservative, prefs2, domain.OperationContext{})
	assert.Equal(t, domain.DecisionBlock, d2.Kind, "Block from the table must survive a softer custom rule")
}

func TestDecideRiskClampedRangeNeverUpgradesAcrossModes(t *testing.T) {
	for _, mode := range []domain.AutoAcceptMode{domain.ModeConservative, domain.ModeBalanced, domain.ModeAggressive} {
		d := Decide(domain.UnifiedScore{Confidence: 0, Risk: 100}, nil, mode, domain.UserPreferences{}, domain.OperationContext{})
		assert.Equal(t, domain.DecisionBlock, d.Kind, "mode=%s", mode)
	}
}
