// Package decision implements the Smart Decision Engine (spec.md §4.7
// C15): a pure function mapping (UnifiedScore, operations, mode,
// preferences) to an ExecutionDecision via a deterministic table, then
// override and custom rules that may only downgrade toward Block,
// never upgrade toward AutoExecute.
package decision

import (
	"fmt"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

// massUpdateThreshold is the operation-count threshold spec.md §4.7's
// mass-update override fires at ("|ops| ≥ 10").
const massUpdateThreshold = 10

// Decide is the Smart Decision Engine's pure entry point.
func Decide(unified domain.UnifiedScore, ops []domain.FileOperation, mode domain.AutoAcceptMode, prefs domain.UserPreferences, opCtx domain.OperationContext) domain.ExecutionDecision {
	kind, reason := tableLookup(mode, unified)
	decision := domain.ExecutionDecision{
		Kind:       kind,
		Confidence: unified.Confidence,
		Risk:       unified.Risk,
		Reasons:    []string{reason},
	}

	decision = applyDeletionOverride(decision, ops, prefs)
	decision = applyMassUpdateOverride(decision, ops, prefs)
	decision = applyCustomRules(decision, ops, unified, opCtx, prefs)

	return decision
}

// tableLookup implements spec.md §4.7's deterministic table, applying
// the stricter-wins tie-break when both Block and AutoExecute
// thresholds could apply simultaneously for a mode (the table is
// constructed so Block is always checked first per mode to realize
// this).
func tableLookup(mode domain.AutoAcceptMode, u domain.UnifiedScore) (domain.ExecutionDecisionKind, string) {
	switch mode {
	case domain.ModeConservative:
		if u.Risk >= 40 {
			return domain.DecisionBlock, "Conservative: risk >= 40"
		}
		if u.Confidence >= 90 && u.Risk <= 10 {
			return domain.DecisionAutoExecute, "Conservative: confidence >= 90 and risk <= 10"
		}
		return domain.DecisionRequireConfirmation, "Conservative: default"

	case domain.ModeBalanced:
		if u.Risk >= 70 {
			return domain.DecisionBlock, "Balanced: risk >= 70"
		}
		if u.Confidence >= 80 && u.Risk <= 20 {
			return domain.DecisionAutoExecute, "Balanced: confidence >= 80 and risk <= 20"
		}
		return domain.DecisionRequireConfirmation, "Balanced: default"

	case domain.ModeAggressive:
		if u.Risk >= 90 {
			return domain.DecisionBlock, "Aggressive: risk >= 90"
		}
		if u.Confidence >= 60 && u.Risk <= 40 {
			return domain.DecisionAutoExecute, "Aggressive: confidence >= 60 and risk <= 40"
		}
		return domain.DecisionRequireConfirmation, "Aggressive: default"

	case domain.ModePlan:
		if u.Risk >= 95 {
			return domain.DecisionBlock, "Plan: risk >= 95"
		}
		return domain.DecisionRequireConfirmation, "Plan: always requires confirmation with full plan"

	case domain.ModeManual:
		return domain.DecisionRequireConfirmation, "Manual: always requires confirmation unless an explicit Block rule fires"

	default:
		return domain.DecisionRequireConfirmation, fmt.Sprintf("unknown mode %q: defaulting to RequireConfirmation", mode)
	}
}

// applyDeletionOverride downgrades AutoExecute to RequireConfirmation
// when ops contains a Delete and the preference requires it. Overrides
// never upgrade (spec.md §4.7).
func applyDeletionOverride(d domain.ExecutionDecision, ops []domain.FileOperation, prefs domain.UserPreferences) domain.ExecutionDecision {
	if d.Kind != domain.DecisionAutoExecute || !prefs.RequireConfirmationForDeletions {
		return d
	}
	for _, op := range ops {
		if op.Kind == domain.OpDelete {
			return downgrade(d, domain.DecisionRequireConfirmation, "deletion requires confirmation")
		}
	}
	return d
}

// applyMassUpdateOverride downgrades AutoExecute when |ops| >= 10 and
// the preference requires it.
func applyMassUpdateOverride(d domain.ExecutionDecision, ops []domain.FileOperation, prefs domain.UserPreferences) domain.ExecutionDecision {
	if d.Kind != domain.DecisionAutoExecute || !prefs.RequireConfirmationForMassUpdates {
		return d
	}
	if len(ops) >= massUpdateThreshold {
		return downgrade(d, domain.DecisionRequireConfirmation, "mass update requires confirmation")
	}
	return d
}

// applyCustomRules evaluates prefs.CustomRules in order; a matching
// rule downgrades to RequireConfirmation or Block per its own Block
// flag, never upgrading an already-stricter decision (spec.md §4.7:
// "custom rules ... may downgrade or Block; they may not upgrade").
func applyCustomRules(d domain.ExecutionDecision, ops []domain.FileOperation, unified domain.UnifiedScore, opCtx domain.OperationContext, prefs domain.UserPreferences) domain.ExecutionDecision {
	for _, rule := range prefs.CustomRules {
		if rule.Predicate == nil || !rule.Predicate(ops, unified, opCtx) {
			continue
		}
		target := domain.DecisionRequireConfirmation
		if rule.Block {
			target = domain.DecisionBlock
		}
		d = downgrade(d, target, fmt.Sprintf("custom rule %q: %s", rule.Name, rule.Reason))
	}
	return d
}

// severity totally orders decision kinds from loosest to strictest so
// downgrade() can refuse to ever move a decision back toward
// AutoExecute.
var severity = map[domain.ExecutionDecisionKind]int{
	domain.DecisionAutoExecute:         0,
	domain.DecisionRequireConfirmation: 1,
	domain.DecisionBlock:               2,
}

// downgrade moves d to the stricter of its current kind and target,
// appending reason. It never loosens a decision (spec.md §4.7: "they
// may not upgrade"; ties resolve toward Block via severity order).
func downgrade(d domain.ExecutionDecision, target domain.ExecutionDecisionKind, reason string) domain.ExecutionDecision {
	if severity[target] > severity[d.Kind] {
		d.Kind = target
	}
	d.Reasons = append(d.Reasons, reason)
	return d
}
