// Package rollback implements the Rollback Executor (spec.md §4.8
// C16): validates a RollbackPlan's operation DAG via Kahn's
// topological sort, then executes each action in dependency order
// under a safety-level-driven failure policy.
package rollback

import (
	"context"
	"fmt"
	"time"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/engineerr"
	"github.com/hivetechs-collective/hive-consensus/internal/gomindlog"
)

// Executor runs RollbackPlans.
type Executor struct {
	logger gomindlog.Logger
}

// New constructs an Executor.
func New(logger gomindlog.Logger) *Executor {
	if logger == nil {
		logger = gomindlog.NoOpLogger{}
	}
	return &Executor{logger: logger}
}

// Execute validates plan's dependency DAG, then runs each operation in
// topological order. dryRun logs every action but mutates nothing.
func (e *Executor) Execute(ctx context.Context, plan domain.RollbackPlan, dryRun bool) (domain.RollbackResult, error) {
	start := time.Now()
	result := domain.RollbackResult{
		PlanID:          plan.PlanID,
		OperationsTotal: len(plan.Operations),
	}

	d := newDAG(plan.Operations)

	if missing := d.missingDependencies(); len(missing) > 0 {
		return result, fmt.Errorf("%w: operation(s) %v depend on missing operations", engineerr.ErrCircularDependency, missing)
	}
	if d.hasCycle() {
		return result, engineerr.ErrCircularDependency
	}

	order := d.topologicalOrder()
	if len(order) != len(plan.Operations) {
		// Kahn's algorithm only emits every node when the graph is acyclic;
		// a short result here means hasCycle's DFS missed something (it
		// shouldn't), so treat it defensively as a cycle.
		return result, engineerr.ErrCircularDependency
	}

	failFast := plan.SafetyLevel == domain.SafetyHigh || plan.SafetyLevel == domain.SafetyCritical

	for _, id := range order {
		op := d.nodes[id].op
		opStart := time.Now()

		if dryRun {
			e.logger.Info("rollback dry-run action", map[string]interface{}{
				"plan_id": plan.PlanID, "operation_id": id, "action": string(op.Action.Kind),
			})
		}

		err := executeAction(ctx, op.Action, dryRun)
		opResult := domain.OperationResult{
			OperationID: id,
			DurationMS:  time.Since(opStart).Milliseconds(),
		}

		if err != nil {
			opResult.Status = domain.OpResultFailed
			opResult.Error = err.Error()
			result.OperationResults = append(result.OperationResults, opResult)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", id, err))

			e.logger.Error("rollback action failed", map[string]interface{}{
				"plan_id": plan.PlanID, "operation_id": id, "error": err.Error(),
			})

			if failFast {
				break
			}
			continue
		}

		opResult.Status = domain.OpResultCompleted
		result.OperationResults = append(result.OperationResults, opResult)
		result.OperationsCompleted++
	}

	result.DurationMS = time.Since(start).Milliseconds()
	result.Success = result.OperationsCompleted == result.OperationsTotal && len(result.Errors) == 0
	return result, nil
}
