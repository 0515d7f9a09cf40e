package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/config"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// fakeSearchClient answers with a queued response per call, cycling
// through responses in order and repeating the last one once exhausted.
type fakeSearchClient struct {
	responses []*interfaces.SearchResponse
	errs      []error
	calls     []interfaces.SearchQuery
}

func (f *fakeSearchClient) Search(_ context.Context, q interfaces.SearchQuery) (*interfaces.SearchResponse, error) {
	i := len(f.calls)
	f.calls = append(f.calls, q)
	if i >= len(f.responses) {
		i = len(f.responses) - 1
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return f.responses[i], err
}

func refsWithScore(scores ...float64) []types.Reference {
	out := make([]types.Reference, len(scores))
	for i, s := range scores {
		out[i] = types.Reference{ID: string(rune('a' + i)), Title: string(rune('a' + i)), Score: s}
	}
	return out
}

func TestEngine_retrieve_stage1SucceedsWhenAtLeastMinDocs(t *testing.T) {
	fs := config.Defaults()
	fs.EnableAdaptiveRetrieval = false
	client := &fakeSearchClient{responses: []*interfaces.SearchResponse{
		{Values: refsWithScore(3, 3, 3), Coverage: 0.9},
	}}
	e := NewEngine(client, nil, nil, fs)

	res, err := e.Retrieve(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Len(t, res.References, 3)
	assert.Equal(t, 1, res.Diagnostics.Attempts)
	assert.True(t, res.Diagnostics.Succeeded)
}

func TestEngine_retrieve_fallsBackToRelaxedThresholdWhenStage1TooFew(t *testing.T) {
	fs := config.Defaults()
	fs.EnableAdaptiveRetrieval = false
	client := &fakeSearchClient{responses: []*interfaces.SearchResponse{
		{Values: refsWithScore(1), Coverage: 0.5}, // below MinDocs
		{Values: refsWithScore(1, 1), Coverage: 0.5},
	}}
	e := NewEngine(client, nil, nil, fs)

	res, err := e.Retrieve(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, "relaxed_threshold", res.Diagnostics.FallbackReason)
	assert.Equal(t, 2, res.Diagnostics.Attempts)
}

func TestEngine_retrieve_fallsBackToVectorOnlyWhenFirstTwoEmpty(t *testing.T) {
	fs := config.Defaults()
	fs.EnableAdaptiveRetrieval = false
	client := &fakeSearchClient{responses: []*interfaces.SearchResponse{
		{Values: nil},
		{Values: nil},
		{Values: refsWithScore(0.5)},
	}}
	e := NewEngine(client, nil, nil, fs)

	res, err := e.Retrieve(context.Background(), "q", Options{})
	require.NoError(t, err)
	assert.Equal(t, "vector_only", res.Diagnostics.FallbackReason)
	assert.Equal(t, 3, res.Diagnostics.Attempts)
	assert.True(t, client.calls[2].VectorOnly)
}

func TestEngine_retrieve_allStagesExhaustedReturnsRetrievalEmptyError(t *testing.T) {
	fs := config.Defaults()
	fs.EnableAdaptiveRetrieval = false
	client := &fakeSearchClient{responses: []*interfaces.SearchResponse{
		{Values: nil}, {Values: nil}, {Values: nil},
	}}
	e := NewEngine(client, nil, nil, fs)

	_, err := e.Retrieve(context.Background(), "q", Options{})
	assert.Error(t, err)
}

func TestEngine_clientFor_usesSecondaryWhenIndexNamed(t *testing.T) {
	fs := config.Defaults()
	primary := &fakeSearchClient{responses: []*interfaces.SearchResponse{{Values: refsWithScore(3, 3, 3)}}}
	secondary := &fakeSearchClient{responses: []*interfaces.SearchResponse{{Values: refsWithScore(3, 3, 3)}}}
	e := NewEngine(primary, map[string]interfaces.SearchClient{"alt": secondary}, nil, fs)

	got := e.clientFor(Options{Index: "alt"})
	assert.Same(t, interfaces.SearchClient(secondary), got)

	got2 := e.clientFor(Options{Index: "unknown"})
	assert.Same(t, interfaces.SearchClient(primary), got2)
}

func TestEngine_retrieveLazy_summariesTruncateLongContentUntilLoaded(t *testing.T) {
	fs := config.Defaults()
	long := ""
	for i := 0; i < 300; i++ {
		long += "x"
	}
	client := &fakeSearchClient{responses: []*interfaces.SearchResponse{
		{Values: []types.Reference{{ID: "r1", Content: long, Score: 3}, {ID: "r2", Content: long, Score: 3}, {ID: "r3", Content: long, Score: 3}}},
	}}
	e := NewEngine(client, nil, nil, fs)

	lazy, err := e.RetrieveLazy(context.Background(), "q", Options{})
	require.NoError(t, err)
	require.Len(t, lazy.Summaries, 3)
	assert.False(t, lazy.Summaries[0].FullyLoaded)
	assert.Less(t, len(lazy.Summaries[0].Content), len(long))

	full, err := lazy.Load(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, long, full)

	_, err = lazy.Load(context.Background(), "missing")
	assert.Error(t, err)
}

func TestNeedsReformulation_trueWhenCoverageBelowThreshold(t *testing.T) {
	fs := config.Defaults()
	resp := &interfaces.SearchResponse{Coverage: 0.01, Values: refsWithScore(5, 5, 5)}
	assert.True(t, needsReformulation(resp, fs))
}

func TestNeedsReformulation_falseWhenAllMetricsClearThresholds(t *testing.T) {
	fs := config.Defaults()
	resp := &interfaces.SearchResponse{Coverage: 0.9, Values: refsWithScore(5, 5, 5)}
	assert.False(t, needsReformulation(resp, fs))
}

func TestDiversityOf_ratioOfUniqueTitles(t *testing.T) {
	refs := []types.Reference{{Title: "a"}, {Title: "a"}, {Title: "b"}}
	assert.InDelta(t, 2.0/3.0, diversityOf(refs), 0.0001)
	assert.Equal(t, float64(0), diversityOf(nil))
}
