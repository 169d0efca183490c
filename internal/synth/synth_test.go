package synth

import "testing"

import "github.com/stretchr/testify/assert"

func TestExtractSeparatesInsightsFromRecommendations(t *testing.T) {
	s := New()
	out := s.Extract("- The cache is process-local.\n- You should add a TTL to avoid unbounded growth.\n")

	assert.Contains(t, out.Insights, "The cache is process-local.")
	assert.Contains(t, out.Recommendations, "You should add a TTL to avoid unbounded growth.")
}

func TestScoreRisesWithContent(t *testing.T) {
	s := New()
	sparse := s.Score("ok")
	rich := s.Score("- insight one\n- insight two\n- you should do X\n- consider Y\n- avoid Z\n")

	assert.Less(t, sparse.Confidence, rich.Confidence)
	assert.Equal(t, 0.0, rich.Risk)
}
