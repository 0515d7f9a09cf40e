package ctxpipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/types"
)

func messages(n int) []types.Message {
	out := make([]types.Message, 0, n)
	for i := 0; i < n; i++ {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		out = append(out, types.Message{Role: role, Content: "msg"})
	}
	return out
}

func TestCompact_shortHistoryIsKeptEntirelyVerbatimWithoutCallingLLM(t *testing.T) {
	llm := &fakeStructuredLLM{err: errors.New("should not be called")}
	p := NewPipeline(llm, 4)

	msgs := messages(4)
	result, err := p.Compact(context.Background(), msgs, 1)

	require.NoError(t, err)
	assert.Equal(t, msgs, result.RecentMessages)
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Salience)
}

func TestCompact_olderHistoryIsSummarizedAndRecentWindowKeptVerbatim(t *testing.T) {
	payload := []byte(`{"summary":["user asked about billing"],"salience":[{"fact":"user is on the pro plan","topic":"billing"}]}`)
	llm := &fakeStructuredLLM{payloads: [][]byte{payload}}
	p := NewPipeline(llm, 2)

	msgs := messages(10)
	result, err := p.Compact(context.Background(), msgs, 3)

	require.NoError(t, err)
	assert.Len(t, result.RecentMessages, 4)
	assert.Equal(t, msgs[6:], result.RecentMessages)
	require.Len(t, result.Summary, 1)
	assert.Equal(t, "user asked about billing", result.Summary[0].Text)
	assert.Equal(t, 3, result.Summary[0].Turn)
	require.Len(t, result.Salience, 1)
	assert.Equal(t, "user is on the pro plan", result.Salience[0].Fact)
	assert.Equal(t, 3, result.Salience[0].LastSeenTurn)
}

func TestCompact_llmFailureFallsBackToRecentWindowOnly(t *testing.T) {
	llm := &fakeStructuredLLM{err: errors.New("upstream exploded")}
	p := NewPipeline(llm, 2)

	msgs := messages(10)
	result, err := p.Compact(context.Background(), msgs, 1)

	require.NoError(t, err)
	assert.Equal(t, msgs[6:], result.RecentMessages)
	assert.Empty(t, result.Summary)
	assert.Empty(t, result.Salience)
}

func TestNewPipeline_nonPositiveRecentTurnsDefaultsToFour(t *testing.T) {
	p := NewPipeline(&fakeStructuredLLM{}, 0)
	assert.Equal(t, 4, p.recentTurn)
}

func TestSelectSummaries_returnsAllWhenKNonPositiveOrGreaterThanLength(t *testing.T) {
	bullets := []types.SummaryBullet{{Text: "a"}, {Text: "b"}}
	assert.Equal(t, bullets, SelectSummaries(nil, bullets, 0))
	assert.Equal(t, bullets, SelectSummaries(nil, bullets, 5))
}

func TestSelectSummaries_fallsBackToRecencyWhenNoBulletHasAnEmbedding(t *testing.T) {
	bullets := []types.SummaryBullet{
		{Text: "oldest", Turn: 1},
		{Text: "newest", Turn: 3},
		{Text: "middle", Turn: 2},
	}

	top := SelectSummaries(nil, bullets, 2)

	require.Len(t, top, 2)
	assert.Equal(t, "newest", top[0].Text)
	assert.Equal(t, "middle", top[1].Text)
}

func TestSelectSummaries_ranksByEmbeddingCosineSimilarityWhenAvailable(t *testing.T) {
	query := []float32{1, 0}
	bullets := []types.SummaryBullet{
		{Text: "orthogonal", Embedding: []float32{0, 1}, Turn: 5},
		{Text: "aligned", Embedding: []float32{1, 0}, Turn: 1},
	}

	top := SelectSummaries(query, bullets, 1)

	require.Len(t, top, 1)
	assert.Equal(t, "aligned", top[0].Text)
}
