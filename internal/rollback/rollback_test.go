package rollback

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func TestExecuteDeleteCreatedFileIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.txt")

	plan := domain.RollbackPlan{
		PlanID:      "p1",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op1", Action: domain.RollbackAction{Kind: domain.ActionDeleteCreatedFile, Path: path}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, false)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, result.OperationsCompleted)
}

func TestExecuteRecreateDeletedFileWritesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "restored.txt")

	plan := domain.RollbackPlan{
		PlanID:      "p2",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op1", Action: domain.RollbackAction{Kind: domain.ActionRecreateDeletedFile, Path: path, Content: "hello"}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, false)

	require.NoError(t, err)
	assert.True(t, result.Success)
	content, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "hello", string(content))
}

func TestExecuteDryRunMutatesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "should-not-exist.txt")

	plan := domain.RollbackPlan{
		PlanID:      "p3",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op1", Action: domain.RollbackAction{Kind: domain.ActionRecreateDeletedFile, Path: path, Content: "hello"}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, true)

	require.NoError(t, err)
	assert.True(t, result.Success)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExecuteRejectsPathTraversal(t *testing.T) {
	plan := domain.RollbackPlan{
		PlanID:      "p4",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op1", Action: domain.RollbackAction{Kind: domain.ActionDeleteCreatedFile, Path: "../etc/passwd"}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, false)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.Errors, 1)
}

func TestExecuteDependencyOrderRunsUpstreamFirst(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	plan := domain.RollbackPlan{
		PlanID:      "p5",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op-b", Action: domain.RollbackAction{Kind: domain.ActionRecreateDeletedFile, Path: b, Content: "b"}, Dependencies: []string{"op-a"}},
			{OperationID: "op-a", Action: domain.RollbackAction{Kind: domain.ActionRecreateDeletedFile, Path: a, Content: "a"}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, false)

	require.NoError(t, err)
	require.Len(t, result.OperationResults, 2)
	assert.Equal(t, "op-a", result.OperationResults[0].OperationID)
	assert.Equal(t, "op-b", result.OperationResults[1].OperationID)
}

func TestExecuteDetectsCircularDependency(t *testing.T) {
	plan := domain.RollbackPlan{
		PlanID:      "p6",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op1", Action: domain.RollbackAction{Kind: domain.ActionNoOp}, Dependencies: []string{"op2"}},
			{OperationID: "op2", Action: domain.RollbackAction{Kind: domain.ActionNoOp}, Dependencies: []string{"op1"}},
		},
	}

	_, err := New(nil).Execute(context.Background(), plan, false)

	require.Error(t, err)
}

func TestExecuteHighSafetyAbortsOnFirstFailure(t *testing.T) {
	plan := domain.RollbackPlan{
		PlanID:      "p7",
		SafetyLevel: domain.SafetyHigh,
		Operations: []domain.RollbackOperation{
			{OperationID: "op-fail", Action: domain.RollbackAction{Kind: domain.ActionUndoRename, Current: "/nonexistent/path/xyz"}},
			{OperationID: "op-after", Action: domain.RollbackAction{Kind: domain.ActionNoOp}, Dependencies: []string{"op-fail"}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, false)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.OperationResults, 1, "op-after should never run after a High-safety abort")
}

func TestExecuteLowSafetyContinuesAfterFailure(t *testing.T) {
	plan := domain.RollbackPlan{
		PlanID:      "p8",
		SafetyLevel: domain.SafetyLow,
		Operations: []domain.RollbackOperation{
			{OperationID: "op-fail", Action: domain.RollbackAction{Kind: domain.ActionUndoRename, Current: "/nonexistent/path/xyz"}},
			{OperationID: "op-ok", Action: domain.RollbackAction{Kind: domain.ActionNoOp}},
		},
	}

	result, err := New(nil).Execute(context.Background(), plan, false)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Len(t, result.OperationResults, 2)
}
