package rollback

import (
	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

// node mirrors the teacher's DAGNode, keyed by RollbackOperation.OperationID.
type node struct {
	op         domain.RollbackOperation
	dependents []string
}

// dag is a minimal directed-acyclic-graph over a RollbackPlan's
// operations, adapted from orchestration/workflow_dag.go's
// WorkflowDAG: same dependents-rebuild + DFS-cycle-check + Kahn
// topological-sort shape, specialized to RollbackOperation instead of
// a generic workflow step ID.
type dag struct {
	nodes map[string]*node
	order []string // insertion order, for deterministic iteration
}

func newDAG(ops []domain.RollbackOperation) *dag {
	d := &dag{nodes: make(map[string]*node, len(ops))}
	for _, op := range ops {
		d.nodes[op.OperationID] = &node{op: op}
		d.order = append(d.order, op.OperationID)
	}
	d.rebuildDependents()
	return d
}

func (d *dag) rebuildDependents() {
	for _, n := range d.nodes {
		n.dependents = nil
	}
	for id, n := range d.nodes {
		for _, dep := range n.op.Dependencies {
			if depNode, ok := d.nodes[dep]; ok {
				depNode.dependents = append(depNode.dependents, id)
			}
		}
	}
}

// missingDependencies returns operation IDs referenced in a
// Dependencies list but absent from the plan.
func (d *dag) missingDependencies() []string {
	var missing []string
	for _, n := range d.nodes {
		for _, dep := range n.op.Dependencies {
			if _, ok := d.nodes[dep]; !ok {
				missing = append(missing, dep)
			}
		}
	}
	return missing
}

// hasCycle runs DFS-based cycle detection over dependents edges,
// grounded on WorkflowDAG.hasCycleDFS.
func (d *dag) hasCycle() bool {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)

	for _, id := range d.order {
		if !visited[id] {
			if d.hasCycleDFS(id, visited, recStack) {
				return true
			}
		}
	}
	return false
}

func (d *dag) hasCycleDFS(id string, visited, recStack map[string]bool) bool {
	visited[id] = true
	recStack[id] = true

	for _, dependent := range d.nodes[id].dependents {
		if !visited[dependent] {
			if d.hasCycleDFS(dependent, visited, recStack) {
				return true
			}
		} else if recStack[dependent] {
			return true
		}
	}

	recStack[id] = false
	return false
}

// topologicalOrder returns operation IDs via Kahn's algorithm,
// grounded on WorkflowDAG.GetTopologicalOrder, iterating the initial
// zero-in-degree set in insertion order for determinism.
func (d *dag) topologicalOrder() []string {
	inDegree := make(map[string]int, len(d.nodes))
	for id, n := range d.nodes {
		inDegree[id] = len(n.op.Dependencies)
	}

	var queue []string
	for _, id := range d.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var result []string
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		for _, dependent := range d.nodes[current].dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	return result
}
