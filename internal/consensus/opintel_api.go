package consensus

import (
	"context"

	"github.com/hivetechs-collective/hive-consensus/internal/decision"
	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/helpers"
	"github.com/hivetechs-collective/hive-consensus/internal/opintel"
	"github.com/hivetechs-collective/hive-consensus/internal/rollback"
)

// OperationIntelligence exposes spec.md §6.5's score_operations / decide /
// execute_rollback surface over the already-wired helper coordinator,
// score fuser, decision engine, and rollback executor. It holds no
// per-request state, so one instance serves every call concurrently.
type OperationIntelligence struct {
	coordinator *helpers.Coordinator
	weights     map[domain.HelperName]float64
	rollback    *rollback.Executor
}

// NewOperationIntelligence wires the Parallel Helper Coordinator (C10),
// the Operation Intelligence fuser (C14), the Smart Decision Engine
// (C15), and the Rollback Executor (C16) behind one API surface.
// weights may be nil to use opintel.DefaultWeights().
func NewOperationIntelligence(coordinator *helpers.Coordinator, weights map[domain.HelperName]float64, rb *rollback.Executor) *OperationIntelligence {
	if weights == nil {
		weights = opintel.DefaultWeights()
	}
	return &OperationIntelligence{coordinator: coordinator, weights: weights, rollback: rb}
}

// ScoreOperations implements score_operations(ops, context) → UnifiedScore:
// fans the five helpers out via the coordinator, then fuses the merged
// result into one confidence/risk pair.
func (oi *OperationIntelligence) ScoreOperations(ctx context.Context, ops []domain.FileOperation, opCtx domain.OperationContext) domain.UnifiedScore {
	merged := oi.coordinator.RunAll(ctx, helpers.Input{Operations: ops, OpContext: opCtx})
	return opintel.Fuse(merged, oi.weights)
}

// Decide implements decide(ops, context, mode, prefs) → ExecutionDecision:
// scores the operations, then runs the deterministic decision table and
// override rules against the result.
func (oi *OperationIntelligence) Decide(ctx context.Context, ops []domain.FileOperation, opCtx domain.OperationContext, mode domain.AutoAcceptMode, prefs domain.UserPreferences) domain.ExecutionDecision {
	unified := oi.ScoreOperations(ctx, ops, opCtx)
	return decision.Decide(unified, ops, mode, prefs, opCtx)
}

// ExecuteRollback implements execute_rollback(plan, dry_run) → RollbackResult.
func (oi *OperationIntelligence) ExecuteRollback(ctx context.Context, plan domain.RollbackPlan, dryRun bool) (domain.RollbackResult, error) {
	return oi.rollback.Execute(ctx, plan, dryRun)
}
