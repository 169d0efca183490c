package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func TestClassifyFlagsDestructiveShell(t *testing.T) {
	r := New()
	score := r.Classify([]domain.FileOperation{
		{Kind: domain.OpCreate, Path: "setup.sh", Content: "#!/bin/sh\nrm -rf /\n"},
	})

	assert.Greater(t, score.Risk, 0.0)
	assert.Equal(t, 1, score.Metrics["destructive-shell_matches"])
}

func TestClassifyBenignOperationIsLowRisk(t *testing.T) {
	r := New()
	score := r.Classify([]domain.FileOperation{
		{Kind: domain.OpUpdate, Path: "internal/foo.go", Content: "package foo\n\nfunc Foo() {}\n"},
	})

	assert.Equal(t, 0.0, score.Risk)
}

func TestClassifyRiskCapsAtHundred(t *testing.T) {
	r := New()
	ops := make([]domain.FileOperation, 0, 10)
	for i := 0; i < 10; i++ {
		ops = append(ops, domain.FileOperation{Kind: domain.OpCreate, Path: "x.sh", Content: "rm -rf /"})
	}
	score := r.Classify(ops)

	assert.Equal(t, 100.0, score.Risk)
}

func TestClassifyEmptyOperationsIsNeutralConfidence(t *testing.T) {
	r := New()
	score := r.Classify(nil)
	assert.Equal(t, 50.0, score.Confidence)
	assert.Equal(t, 0.0, score.Risk)
}
