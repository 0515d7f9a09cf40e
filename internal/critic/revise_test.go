package critic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/types"
)

func TestLoop_acceptsFirstAttempt(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{[]byte(`{"grounded":true,"coverage":1.0,"issues":[],"action":"accept"}`)}}
	c := NewCritic(llm)
	refs := []types.Reference{{ID: "1", Content: "a"}}

	synthCalls := 0
	synth := func(context.Context, []string) (string, error) {
		synthCalls++
		return "revised", nil
	}

	answer, reports, unresolved, err := Loop(context.Background(), c, "q", refs, nil, 2, synth, "answer cites [1]")
	require.NoError(t, err)
	assert.Equal(t, "answer cites [1]", answer)
	assert.Len(t, reports, 1)
	assert.False(t, unresolved)
	assert.Equal(t, 0, synthCalls)
}

func TestLoop_revisesUntilAccepted(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{
		[]byte(`{"grounded":false,"coverage":0.2,"issues":["missing detail"],"action":"revise"}`),
		[]byte(`{"grounded":true,"coverage":0.9,"issues":[],"action":"accept"}`),
	}}
	c := NewCritic(llm)
	refs := []types.Reference{{ID: "1", Content: "a"}}

	synth := func(_ context.Context, notes []string) (string, error) {
		require.Equal(t, []string{"missing detail"}, notes)
		return "revised cites [1]", nil
	}

	answer, reports, unresolved, err := Loop(context.Background(), c, "q", refs, nil, 2, synth, "answer cites [1]")
	require.NoError(t, err)
	assert.Equal(t, "revised cites [1]", answer)
	assert.Len(t, reports, 2)
	assert.False(t, unresolved)
}

func TestLoop_exhaustsBudgetWithoutAccept(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{
		[]byte(`{"grounded":false,"coverage":0.2,"issues":["bad"],"action":"revise"}`),
		[]byte(`{"grounded":false,"coverage":0.2,"issues":["still bad"],"action":"revise"}`),
	}}
	c := NewCritic(llm)
	refs := []types.Reference{{ID: "1", Content: "a"}}

	synth := func(context.Context, []string) (string, error) { return "revised cites [1]", nil }

	answer, reports, unresolved, err := Loop(context.Background(), c, "q", refs, nil, 1, synth, "answer cites [1]")
	require.NoError(t, err)
	assert.Equal(t, "revised cites [1]", answer)
	assert.Len(t, reports, 2)
	assert.True(t, unresolved)
}
