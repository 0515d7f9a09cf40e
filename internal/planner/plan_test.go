package planner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/groundedqa/sentra/internal/types"
)

func TestPlanner_Plan_highConfidenceNoEscalation(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{[]byte(`{"confidence":0.9,"steps":["vector_search"],"rationale":"clear"}`)}}
	p := NewPlanner(llm, 0.5)

	plan, err := p.Plan(context.Background(), "q", types.Intent{})
	require.NoError(t, err)
	assert.False(t, plan.Escalated)
	assert.Equal(t, []types.PlanStep{types.StepVectorSearch}, plan.Steps)
}

func TestPlanner_Plan_lowConfidenceEscalatesToDual(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{[]byte(`{"confidence":0.1,"steps":["vector_search"],"rationale":"unsure"}`)}}
	p := NewPlanner(llm, 0.5)

	plan, err := p.Plan(context.Background(), "q", types.Intent{})
	require.NoError(t, err)
	assert.True(t, plan.Escalated)
	assert.ElementsMatch(t, []types.PlanStep{types.StepVectorSearch, types.StepWebSearch}, plan.Steps)
}

func TestPlanner_Plan_emptyStepsDefaultsToVectorSearch(t *testing.T) {
	llm := &fakeStructuredLLM{payloads: [][]byte{[]byte(`{"confidence":0.9,"steps":[],"rationale":"n/a"}`)}}
	p := NewPlanner(llm, 0.5)

	plan, err := p.Plan(context.Background(), "q", types.Intent{})
	require.NoError(t, err)
	assert.Equal(t, []types.PlanStep{types.StepVectorSearch}, plan.Steps)
}
