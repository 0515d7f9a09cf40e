package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/config"
	"github.com/groundedqa/sentra/internal/planner"
	"github.com/groundedqa/sentra/internal/retrieval"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

type fakeSearchClient struct {
	refs []types.Reference
	err  error
}

func (f *fakeSearchClient) Search(ctx context.Context, q interfaces.SearchQuery) (*interfaces.SearchResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &interfaces.SearchResponse{Values: f.refs, Coverage: 1}, nil
}

type fakeWebSearchClient struct {
	results []types.WebResult
	err     error
}

func (f *fakeWebSearchClient) WebSearch(ctx context.Context, query string, k int) ([]types.WebResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type fakeNoopLLM struct{}

func (fakeNoopLLM) Complete(ctx context.Context, messages []interfaces.ChatMessage, opts interfaces.ChatOptions) (*interfaces.CompletionResult, error) {
	return nil, nil
}
func (fakeNoopLLM) CompleteStream(ctx context.Context, messages []interfaces.ChatMessage, opts interfaces.ChatOptions) (<-chan interfaces.StreamEvent, error) {
	return nil, nil
}
func (fakeNoopLLM) CompleteStructured(ctx context.Context, messages []interfaces.ChatMessage, schema []byte, out interface{}, opts interfaces.ChatOptions) error {
	return nil
}
func (fakeNoopLLM) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return [][]float32{{1, 0, 0}}, nil
}

func newTestEngine(client interfaces.SearchClient) *retrieval.Engine {
	return retrieval.NewEngine(client, nil, fakeNoopLLM{}, config.FeatureSet{MinDocs: 1, RerankerThreshold: 0})
}

func newTestDecomposer(t *testing.T) *planner.Decomposer {
	t.Helper()
	pool, err := concurrency.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(pool.Release)
	return planner.NewDecomposer(fakeNoopLLM{}, 0.6, pool)
}

func TestDispatchPlan_vectorOnlyPopulatesReferencesAndDiagnostics(t *testing.T) {
	client := &fakeSearchClient{refs: []types.Reference{{ID: "1", Score: 1}}}
	o := &Orchestrator{retrieval: newTestEngine(client), llm: fakeNoopLLM{}}
	st := &turnState{
		question: "q",
		plan:     types.Plan{Steps: []types.PlanStep{types.StepVectorSearch}},
		features: config.FeatureSet{},
	}

	err := o.dispatchPlan(context.Background(), st, st.question)

	require.NoError(t, err)
	assert.Len(t, st.references, 1)
	assert.True(t, st.retrieveDiag.Succeeded)
}

func TestDispatchPlan_retrievalFailureWithoutWebReturnsError(t *testing.T) {
	client := &fakeSearchClient{refs: nil}
	o := &Orchestrator{retrieval: newTestEngine(client), llm: fakeNoopLLM{}}
	st := &turnState{
		question: "q",
		plan:     types.Plan{Steps: []types.PlanStep{types.StepVectorSearch}},
	}

	err := o.dispatchPlan(context.Background(), st, st.question)

	assert.Error(t, err)
}

func TestDispatchPlan_webOnlyFusesWebResultsIntoReferences(t *testing.T) {
	web := &fakeWebSearchClient{results: []types.WebResult{{ID: "w1", Title: "web result", Scores: types.WebScores{Overall: 0.9}}}}
	o := &Orchestrator{web: web, llm: fakeNoopLLM{}}
	st := &turnState{
		question: "q",
		plan:     types.Plan{Steps: []types.PlanStep{types.StepWebSearch}},
		features: config.FeatureSet{RRFConstant: 60},
	}

	err := o.dispatchPlan(context.Background(), st, st.question)

	require.NoError(t, err)
	assert.Len(t, st.webResults, 1)
	assert.Len(t, st.references, 1)
	assert.Equal(t, types.SourceWeb, st.references[0].Source)
}

func TestDispatchPlan_indexFailureWithWebPlannedContinuesWithWebOnly(t *testing.T) {
	client := &fakeSearchClient{refs: nil}
	web := &fakeWebSearchClient{results: []types.WebResult{{ID: "w1", Scores: types.WebScores{Overall: 0.5}}}}
	o := &Orchestrator{retrieval: newTestEngine(client), web: web, llm: fakeNoopLLM{}}
	st := &turnState{
		question: "q",
		plan:     types.Plan{Steps: []types.PlanStep{types.StepVectorSearch, types.StepWebSearch}},
		features: config.FeatureSet{RRFConstant: 60},
	}

	err := o.dispatchPlan(context.Background(), st, st.question)

	require.NoError(t, err)
	assert.Len(t, st.webResults, 1)
	foundIndexFailureActivity := false
	for _, a := range st.activity {
		if a.Type == types.ActivityRetrieval {
			foundIndexFailureActivity = true
		}
	}
	assert.True(t, foundIndexFailureActivity)
}

func TestDispatchPlan_webOnlyWithQualityFilterKeepsScoredResults(t *testing.T) {
	web := &fakeWebSearchClient{results: []types.WebResult{{ID: "w1", Title: "web result", Scores: types.WebScores{Authority: 0.6}}}}
	o := &Orchestrator{web: web, llm: fakeNoopLLM{}}
	st := &turnState{
		question: "q",
		plan:     types.Plan{Steps: []types.PlanStep{types.StepWebSearch}},
		features: config.FeatureSet{RRFConstant: 60, EnableWebQualityFilter: true},
	}

	err := o.dispatchPlan(context.Background(), st, st.question)

	require.NoError(t, err)
	require.Len(t, st.webResults, 1)
	assert.Greater(t, st.webResults[0].Scores.Relevance, 0.0)
	require.NotNil(t, st.webFilterDiag)
	assert.Equal(t, 1, st.webFilterDiag.Kept)
	assert.Len(t, st.references, 1)
}

func TestDispatchDecomposed_mergesReferencesFromEverySubQuery(t *testing.T) {
	client := &fakeSearchClient{refs: []types.Reference{{ID: "sub", Score: 1}}}
	engine := newTestEngine(client)
	decomposer := newTestDecomposer(t)
	o := &Orchestrator{retrieval: engine, decomposer: decomposer, llm: fakeNoopLLM{}}
	st := &turnState{
		question: "q",
		plan:     types.Plan{Steps: []types.PlanStep{types.StepVectorSearch}},
		decomposed: &types.DecomposedQuery{
			SubQueries: []types.SubQuery{
				{ID: "a", Text: "sub question a"},
				{ID: "b", Text: "sub question b"},
			},
		},
	}

	err := o.dispatchDecomposed(context.Background(), st)

	require.NoError(t, err)
	assert.Len(t, st.references, 2)
	require.NotNil(t, st.decompDiag)
	assert.Equal(t, 2, st.decompDiag.SubQueryCount)
}
