package critic

import (
	"context"
	"fmt"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/utils"
)

// Critic grades a synthesized answer against the evidence it was given
// and decides whether a revision pass is warranted.
type Critic struct {
	llm interfaces.LLMClient
}

// NewCritic builds a Critic.
func NewCritic(llm interfaces.LLMClient) *Critic {
	return &Critic{llm: llm}
}

type criticSchema struct {
	Grounded bool     `json:"grounded"`
	Coverage float64  `json:"coverage"`
	Issues   []string `json:"issues"`
	Action   string   `json:"action"`
}

// Grade runs the post-synthesis critic: it consumes the question,
// answer, and the evidence supplied to synthesis, and
// returns a CriticReport. The citation-closure check runs first as a
// pure function — a dangling citation always forces grounded=false and
// action=revise regardless of what the LLM says, since closure is a
// hard invariant, not a judgment call.
func (c *Critic) Grade(ctx context.Context, question, answer string, references []types.Reference, webContext []types.WebResult) (types.CriticReport, error) {
	closed, dangling := CitationClosure(answer, len(references))

	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Evaluate whether the answer is fully grounded in the supplied evidence and what fraction of the question's facets it covers. Respond with JSON only."},
		{Role: "user", Content: renderCriticPrompt(question, answer, references, webContext)},
	}

	var out criticSchema
	if err := c.llm.CompleteStructured(ctx, msgs, criticJSONSchema(), &out, interfaces.ChatOptions{Temperature: 0.0}); err != nil {
		return types.CriticReport{}, err
	}

	report := types.CriticReport{
		Grounded: out.Grounded && closed,
		Coverage: out.Coverage,
		Issues:   out.Issues,
		Action:   types.CriticAction(out.Action),
	}
	if !closed {
		report.Issues = append(report.Issues, fmt.Sprintf("citations reference non-existent sources: %v", dangling))
		report.Action = types.CriticRevise
	}
	if report.Action != types.CriticAccept && report.Action != types.CriticRevise {
		report.Action = types.CriticRevise
	}

	common.PipelineInfo(ctx, "critic", "grade", map[string]interface{}{
		"grounded": report.Grounded, "coverage": report.Coverage, "action": report.Action,
	})
	return report, nil
}

func renderCriticPrompt(question, answer string, references []types.Reference, webContext []types.WebResult) string {
	out := "Question: " + question + "\n\nAnswer:\n" + answer + "\n\nEvidence:\n"
	for i, r := range references {
		out += fmt.Sprintf("[%d] %s: %s\n", i+1, r.Title, r.Content)
	}
	for _, w := range webContext {
		out += "web: " + w.Title + ": " + w.Snippet + "\n"
	}
	return out
}

func criticJSONSchema() []byte {
	return utils.GenerateSchema[criticSchema]()
}
