package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
)

func alwaysHelper(score domain.HelperScore) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		return score, nil
	}
}

func slowHelper(delay time.Duration) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		select {
		case <-time.After(delay):
			return domain.HelperScore{Confidence: 99, Risk: 1}, nil
		case <-ctx.Done():
			return domain.HelperScore{}, ctx.Err()
		}
	}
}

func errorHelper(kind domain.HelperErrorKind) Helper {
	return func(ctx context.Context, input Input) (domain.HelperScore, error) {
		return domain.HelperScore{}, domain.HelperError{Kind: kind, Message: "boom"}
	}
}

func TestRunAllMergesAllFiveHelpers(t *testing.T) {
	c := New(map[domain.HelperName]Helper{
		domain.HelperIndexer:     alwaysHelper(domain.HelperScore{Confidence: 80, Risk: 10}),
		domain.HelperRetriever:   alwaysHelper(domain.HelperScore{Confidence: 70, Risk: 20}),
		domain.HelperRecognizer:  alwaysHelper(domain.HelperScore{Confidence: 60, Risk: 30}),
		domain.HelperAnalyzer:    alwaysHelper(domain.HelperScore{Confidence: 50, Risk: 40}),
		domain.HelperSynthesizer: alwaysHelper(domain.HelperScore{Confidence: 40, Risk: 50}),
	}, time.Second, 10, time.Minute, nil)

	result := c.RunAll(context.Background(), Input{Question: "q"})

	require.Len(t, result.Scores, 5)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 80.0, result.Scores[domain.HelperIndexer].Confidence)
}

func TestRunAllTimeoutFallsBackToNeutralPrior(t *testing.T) {
	c := New(map[domain.HelperName]Helper{
		domain.HelperIndexer:     slowHelper(200 * time.Millisecond),
		domain.HelperRetriever:   alwaysHelper(domain.HelperScore{Confidence: 70}),
		domain.HelperRecognizer:  alwaysHelper(domain.HelperScore{Confidence: 60}),
		domain.HelperAnalyzer:    alwaysHelper(domain.HelperScore{Confidence: 50}),
		domain.HelperSynthesizer: alwaysHelper(domain.HelperScore{Confidence: 40}),
	}, 10*time.Millisecond, 10, time.Minute, nil)

	result := c.RunAll(context.Background(), Input{Question: "q2"})

	assert.Equal(t, neutralPrior, result.Scores[domain.HelperIndexer])
	require.Contains(t, result.Errors, domain.HelperIndexer)
	assert.Equal(t, domain.HelperErrTimeout, result.Errors[domain.HelperIndexer].Kind)
}

func TestRunAllErrorFallsBackToNeutralPrior(t *testing.T) {
	c := New(map[domain.HelperName]Helper{
		domain.HelperIndexer:     errorHelper(domain.HelperErrInternal),
		domain.HelperRetriever:   alwaysHelper(domain.HelperScore{Confidence: 70}),
		domain.HelperRecognizer:  alwaysHelper(domain.HelperScore{Confidence: 60}),
		domain.HelperAnalyzer:    alwaysHelper(domain.HelperScore{Confidence: 50}),
		domain.HelperSynthesizer: alwaysHelper(domain.HelperScore{Confidence: 40}),
	}, time.Second, 10, time.Minute, nil)

	result := c.RunAll(context.Background(), Input{Question: "q3"})

	assert.Equal(t, neutralPrior, result.Scores[domain.HelperIndexer])
	assert.Equal(t, domain.HelperErrInternal, result.Errors[domain.HelperIndexer].Kind)
}

func TestRunAllCachesByFingerprint(t *testing.T) {
	calls := 0
	counting := func(ctx context.Context, input Input) (domain.HelperScore, error) {
		calls++
		return domain.HelperScore{Confidence: 77}, nil
	}
	c := New(map[domain.HelperName]Helper{
		domain.HelperIndexer:     counting,
		domain.HelperRetriever:   alwaysHelper(domain.HelperScore{}),
		domain.HelperRecognizer:  alwaysHelper(domain.HelperScore{}),
		domain.HelperAnalyzer:    alwaysHelper(domain.HelperScore{}),
		domain.HelperSynthesizer: alwaysHelper(domain.HelperScore{}),
	}, time.Second, 10, time.Minute, nil)

	in := Input{Question: "same question"}
	c.RunAll(context.Background(), in)
	c.RunAll(context.Background(), in)

	assert.Equal(t, 1, calls, "second call with identical input fingerprint should hit the cache")
}
