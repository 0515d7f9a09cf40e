package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/types"
)

func newTestPool(t *testing.T) *concurrency.Pool {
	t.Helper()
	p, err := concurrency.NewPool(4)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func TestDecomposer_Assess_belowThresholdSkipsDecomposition(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{[]byte(`{"complexity":0.3,"needs_decomposition":true}`)}}
	d := NewDecomposer(llm, 0.6, newTestPool(t))

	a, err := d.Assess(context.Background(), "simple question")
	require.NoError(t, err)
	assert.False(t, a.NeedsDecomposition)
}

func TestDecomposer_Decompose_validDAG(t *testing.T) {
	payload := []byte(`{
		"sub_queries": [
			{"id": "a", "text": "find X", "depends_on": []},
			{"id": "b", "text": "find Y using X", "depends_on": ["a"]}
		],
		"synthesis_prompt": "combine a and b"
	}`)
	llm := &fakeStructuredLLM{payloads: [][]byte{payload}}
	d := NewDecomposer(llm, 0.5, newTestPool(t))

	dq, err := d.Decompose(context.Background(), "compound question")
	require.NoError(t, err)
	require.Len(t, dq.SubQueries, 2)
	assert.Equal(t, "combine a and b", dq.SynthesisPrompt)
}

func TestDecomposer_Decompose_cycleFallsBack(t *testing.T) {
	payload := []byte(`{
		"sub_queries": [
			{"id": "a", "text": "x", "depends_on": ["b"]},
			{"id": "b", "text": "y", "depends_on": ["a"]}
		],
		"synthesis_prompt": "n/a"
	}`)
	llm := &fakeStructuredLLM{payloads: [][]byte{payload}}
	d := NewDecomposer(llm, 0.5, newTestPool(t))

	dq, err := d.Decompose(context.Background(), "original question")
	require.NoError(t, err)
	require.Len(t, dq.SubQueries, 1)
	assert.Equal(t, "original question", dq.SubQueries[0].Text)
}

func TestDecomposer_Decompose_schemaErrorFallsBack(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{[]byte(`not json`)}}
	d := NewDecomposer(llm, 0.5, newTestPool(t))

	dq, err := d.Decompose(context.Background(), "original question")
	require.NoError(t, err)
	require.Len(t, dq.SubQueries, 1)
	assert.Equal(t, "q0", dq.SubQueries[0].ID)
}

func TestDecomposer_RunDAG_respectsDependencyOrder(t *testing.T) {
	d := NewDecomposer(&fakeStructuredLLM{}, 0.5, newTestPool(t))
	dq := types.DecomposedQuery{
		SubQueries: []types.SubQuery{
			{ID: "a", Text: "find X"},
			{ID: "b", Text: "find Y using X", DependsOn: []string{"a"}},
		},
	}

	var completedA bool
	results, err := d.RunDAG(context.Background(), dq, func(_ context.Context, sq types.SubQuery) (interface{}, error) {
		if sq.ID == "b" {
			assert.True(t, completedA, "b must not run before a completes")
		}
		if sq.ID == "a" {
			completedA = true
		}
		return sq.ID + "-done", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "a-done", results["a"])
	assert.Equal(t, "b-done", results["b"])
}

func TestDecomposer_RunDAG_propagatesError(t *testing.T) {
	d := NewDecomposer(&fakeStructuredLLM{}, 0.5, newTestPool(t))
	dq := types.DecomposedQuery{SubQueries: []types.SubQuery{{ID: "a", Text: "x"}}}

	_, err := d.RunDAG(context.Background(), dq, func(context.Context, types.SubQuery) (interface{}, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}
