package planner

import (
	"context"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/utils"
)

// Planner produces dispatch plans and escalates low-confidence ones
// to dual retrieval+web search.
type Planner struct {
	llm           interfaces.LLMClient
	dualThreshold float64
}

// NewPlanner builds a Planner. dualThreshold is the confidence floor
// below which a plan escalates to dual retrieval.
func NewPlanner(llm interfaces.LLMClient, dualThreshold float64) *Planner {
	return &Planner{llm: llm, dualThreshold: dualThreshold}
}

type planSchema struct {
	Confidence float64  `json:"confidence"`
	Steps      []string `json:"steps"`
	Rationale  string   `json:"rationale"`
}

// Plan generates a dispatch plan and applies the escalation rule: a
// plan whose confidence falls below dualThreshold is forced to run
// both vector_search and web_search.
func (p *Planner) Plan(ctx context.Context, question string, intent types.Intent) (types.Plan, error) {
	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Decide which retrieval steps this question needs: vector_search, web_search, or both. Respond with JSON only."},
		{Role: "user", Content: question},
	}

	var out planSchema
	if err := p.llm.CompleteStructured(ctx, msgs, planJSONSchema(), &out, interfaces.ChatOptions{Temperature: 0.0}); err != nil {
		return types.Plan{}, err
	}

	steps := make([]types.PlanStep, 0, len(out.Steps))
	for _, s := range out.Steps {
		step := types.PlanStep(s)
		if step == types.StepVectorSearch || step == types.StepWebSearch {
			steps = append(steps, step)
		}
	}
	if len(steps) == 0 {
		steps = []types.PlanStep{types.StepVectorSearch}
	}

	plan := types.Plan{Confidence: out.Confidence, Steps: steps, Rationale: out.Rationale}
	if plan.Confidence < p.dualThreshold {
		plan.Steps = []types.PlanStep{types.StepVectorSearch, types.StepWebSearch}
		plan.Escalated = true
		common.PipelineInfo(ctx, "planner", "plan_escalated", map[string]interface{}{
			"confidence": plan.Confidence, "threshold": p.dualThreshold,
		})
	}

	common.PipelineInfo(ctx, "planner", "plan", map[string]interface{}{
		"confidence": plan.Confidence, "steps": plan.Steps, "escalated": plan.Escalated,
	})
	return plan, nil
}

func planJSONSchema() []byte {
	return utils.GenerateSchema[planSchema]()
}
