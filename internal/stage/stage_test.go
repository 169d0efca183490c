package stage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hivetechs-collective/hive-consensus/internal/domain"
	"github.com/hivetechs-collective/hive-consensus/internal/modelclient"
)

func testProfile() domain.ConsensusProfile {
	return domain.ConsensusProfile{
		Name:            "test",
		ContextStrategy: domain.ContextNone,
		Retry:           domain.RetryPolicy{MaxAttempts: 2},
	}
}

func TestGeneratorProducesAnswer(t *testing.T) {
	client := modelclient.NewMockClient("This is a thorough answer. It has several sentences. It should pass quality checks. Use this approach.")
	gen := NewGenerator(client, nil, nil, nil)

	result, err := gen.Run(context.Background(), Input{Question: "how do I do X?", Profile: testProfile()})

	require.NoError(t, err)
	assert.Equal(t, domain.StageGenerator, result.Stage)
	assert.NotEmpty(t, result.Answer)
}

func TestGeneratorRetriesOnTransientThenFails(t *testing.T) {
	client := &modelclient.MockClient{
		Response: "partial",
		FailWith: &modelclient.ChunkEvent{Kind: modelclient.ChunkError, ErrKind: modelclient.ErrorTransient, ErrMessage: "temporary"},
	}
	gen := NewGenerator(client, nil, nil, nil)

	_, err := gen.Run(context.Background(), Input{Question: "q", Profile: testProfile()})

	require.Error(t, err)
}

func TestClassifyAnswerPriority(t *testing.T) {
	assert.Equal(t, AnswerCode, ClassifyAnswer("here is ```go\ncode\n```"))
	assert.Equal(t, AnswerExplanation, ClassifyAnswer("it works because the cache is warm, therefore fast"))
	assert.Equal(t, AnswerAnalysis, ClassifyAnswer("let's analyze the tradeoffs"))
	assert.Equal(t, AnswerList, ClassifyAnswer("- one\n- two\n- three"))
	assert.Equal(t, AnswerOther, ClassifyAnswer("a plain sentence"))
}

func TestCheckBasicDetectsUnclosedFence(t *testing.T) {
	f := CheckBasic("```go\nfunc main() {}")
	assert.True(t, f.UnclosedCodeFence)
}

func TestCheckBasicDetectsTruncatedSentence(t *testing.T) {
	f := CheckBasic("this sentence just stops without")
	assert.True(t, f.TruncatedSentence)
}

func TestCheckSecurityDetectsDestructiveShell(t *testing.T) {
	f := CheckSecurity("run `rm -rf /` to clean up")
	assert.True(t, f.DestructiveShell)
}

func TestCheckSecurityDetectsCredential(t *testing.T) {
	f := CheckSecurity("key: sk-abcdefghijklmnopqrstuvwxyz123456")
	assert.True(t, f.HardcodedCredential)
}

func TestNormalizeFormattingHeadingSpacing(t *testing.T) {
	out := NormalizeFormatting("##Title\ntext")
	assert.Contains(t, out, "## Title")
}

func TestNormalizeFormattingLabelsUnlabeledFence(t *testing.T) {
	out := NormalizeFormatting("```\ncode\n```")
	assert.Equal(t, "```text\ncode\n```", out, "only the opening fence should be labeled")
}

func TestNormalizeFormattingLabelsOnlyOpeningFenceOfEachBlock(t *testing.T) {
	out := NormalizeFormatting("```\nfirst\n```\ntext\n```\nsecond\n```")
	assert.Equal(t, "```text\nfirst\n```\ntext\n```text\nsecond\n```", out)
}

func TestNormalizeFormattingUnifiesBullets(t *testing.T) {
	out := NormalizeFormatting("* one\n+ two\n- three")
	assert.Equal(t, "- one\n- two\n- three", out)
}

func TestNormalizeFormattingCollapsesBlankRuns(t *testing.T) {
	out := NormalizeFormatting("a\n\n\n\nb")
	assert.Equal(t, "a\n\nb", out)
}

func TestScoreQualityAllSignals(t *testing.T) {
	text := "## Heading\n" + stringsRepeat("x", 200) +
		"\nThis is one. This is two. This is three.\nUse this to run it."
	q := scoreQuality(text)
	assert.Greater(t, q, 0.6)
}

func stringsRepeat(s string, n int) string {
	out := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}
