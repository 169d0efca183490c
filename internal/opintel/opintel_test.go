package opintel

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func allFiveScores() map[domain.HelperName]domain.HelperScore {
	return map[domain.HelperName]domain.HelperScore{
		domain.HelperIndexer:     {Confidence: 80, Risk: 10},
		domain.HelperRetriever:   {Confidence: 70, Risk: 20},
		domain.HelperRecognizer:  {Confidence: 60, Risk: 30},
		domain.HelperAnalyzer:    {Confidence: 50, Risk: 40},
		domain.HelperSynthesizer: {Confidence: 40, Risk: 50},
	}
}

func TestFuseDefaultWeights(t *testing.T) {
	result := domain.MergedHelperResult{Scores: allFiveScores()}

	unified := Fuse(result, nil)

	expectedConf := 0.30*80 + 0.20*70 + 0.25*60 + 0.15*50 + 0.10*40
	expectedRisk := 0.30*10 + 0.20*20 + 0.25*30 + 0.15*40 + 0.10*50
	assert.InDelta(t, expectedConf, unified.Confidence, 0.001)
	assert.InDelta(t, expectedRisk, unified.Risk, 0.001)
}

func TestFuseClampsToRange(t *testing.T) {
	result := domain.MergedHelperResult{Scores: map[domain.HelperName]domain.HelperScore{
		domain.HelperIndexer: {Confidence: 1000, Risk: -50},
	}}

	unified := Fuse(result, map[domain.HelperName]float64{domain.HelperIndexer: 1.0})

	assert.Equal(t, 100.0, unified.Confidence)
	assert.Equal(t, 0.0, unified.Risk)
}

func TestFuseRenormalizesPartialScores(t *testing.T) {
	result := domain.MergedHelperResult{Scores: map[domain.HelperName]domain.HelperScore{
		domain.HelperIndexer:   {Confidence: 100, Risk: 0},
		domain.HelperRetriever: {Confidence: 0, Risk: 100},
	}}

	unified := Fuse(result, nil)

	// Indexer (0.30) and Retriever (0.20) renormalize to 0.6/0.4.
	assert.InDelta(t, 60.0, unified.Confidence, 0.001)
	assert.InDelta(t, 40.0, unified.Risk, 0.001)
}

func TestFuseCustomWeightsRenormalize(t *testing.T) {
	result := domain.MergedHelperResult{Scores: allFiveScores()}
	custom := map[domain.HelperName]float64{
		domain.HelperIndexer:     2,
		domain.HelperRetriever:   2,
		domain.HelperRecognizer:  2,
		domain.HelperAnalyzer:    2,
		domain.HelperSynthesizer: 2,
	}

	unified := Fuse(result, custom)

	// Equal weights after renormalization -> simple mean.
	assert.InDelta(t, 60.0, unified.Confidence, 0.001)
	assert.InDelta(t, 30.0, unified.Risk, 0.001)
}
