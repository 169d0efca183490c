package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func TestScoreArtifactRewardsDocsAndTests(t *testing.T) {
	documented := ScoreArtifact("foo_test.go", "// Package foo does X.\nfunc TestFoo(t *testing.T) {}\n")
	bare := ScoreArtifact("foo.go", "func foo(){}\n")

	assert.Greater(t, documented.Overall, bare.Overall)
	assert.Equal(t, 1.0, documented.Tests)
}

func TestAssessOperationsEmptyIsNeutral(t *testing.T) {
	a := New()
	score := a.AssessOperations(nil)
	assert.Equal(t, 50.0, score.Confidence)
	assert.Equal(t, 50.0, score.Risk)
}

func TestAssessOperationsHighQualityLowersRisk(t *testing.T) {
	a := New()
	score := a.AssessOperations([]domain.FileOperation{
		{Kind: domain.OpCreate, Path: "foo_test.go", Content: "// Package foo.\nfunc TestFoo(t *testing.T) {}\n## Heading\n```go\ncode\n```"},
	})
	assert.Greater(t, score.Confidence, 50.0)
	assert.Less(t, score.Risk, 50.0)
}
