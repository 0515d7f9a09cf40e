package critic

import (
	"context"
	"fmt"
	"strings"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/utils"
)

// CRAG grades a retrieval set before synthesis runs against it,
// deciding whether to use it as-is, refine it, or fall back to web
// search entirely.
type CRAG struct {
	llm interfaces.LLMClient
}

// NewCRAG builds a CRAG evaluator.
func NewCRAG(llm interfaces.LLMClient) *CRAG {
	return &CRAG{llm: llm}
}

type cragSchema struct {
	Confidence string `json:"confidence"`
	Reasoning  string `json:"reasoning"`
}

// Evaluate runs the CRAG grading gate.
func (g *CRAG) Evaluate(ctx context.Context, question string, references []types.Reference) (types.CRAGEvaluation, error) {
	if len(references) == 0 {
		return types.CRAGEvaluation{Confidence: types.CRAGIncorrect, Action: types.CRAGWebFallback, Reasoning: "no references retrieved"}, nil
	}

	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Grade how well this evidence set answers the question: correct, ambiguous, or incorrect. Respond with JSON only."},
		{Role: "user", Content: renderCRAGPrompt(question, references)},
	}
	var out cragSchema
	if err := g.llm.CompleteStructured(ctx, msgs, cragJSONSchema(), &out, interfaces.ChatOptions{Temperature: 0.0}); err != nil {
		return types.CRAGEvaluation{}, err
	}

	confidence := types.CRAGConfidence(out.Confidence)
	eval := types.CRAGEvaluation{Confidence: confidence, Reasoning: out.Reasoning}
	switch confidence {
	case types.CRAGIncorrect:
		eval.Action = types.CRAGWebFallback
	case types.CRAGAmbiguous:
		eval.Action = types.CRAGRefine
	default:
		eval.Confidence = types.CRAGCorrect
		eval.Action = types.CRAGUse
	}

	common.PipelineInfo(ctx, "critic", "crag", map[string]interface{}{"confidence": eval.Confidence, "action": eval.Action})
	return eval, nil
}

// Refine strips low-signal sentences from each reference on an
// ambiguous grade, keeping only the portion
// of its content relevant to the question. Relevance is a lexical
// word-overlap score against the question rather than a per-sentence
// embedding (computing one per sentence would mean an embedding call
// per sentence per reference, which this refine pass — a cheap,
// synchronous step between CRAG grading and synthesis — can't afford).
func Refine(references []types.Reference, question string, minSentenceOverlap float64) []types.Reference {
	queryWords := wordSet(question)
	out := make([]types.Reference, len(references))
	for i, r := range references {
		out[i] = r
		sentences := splitSentences(r.Content)
		if len(sentences) <= 1 {
			continue
		}
		var kept []string
		for _, s := range sentences {
			if overlap(queryWords, wordSet(s)) >= minSentenceOverlap {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			kept = sentences
		}
		out[i].Content = strings.Join(kept, " ")
	}
	return out
}

func wordSet(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		out[strings.Trim(w, ".,!?;:\"'()")] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	hits := 0
	for w := range b {
		if _, ok := a[w]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(b))
}

func splitSentences(text string) []string {
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(text[start : i+1])
			if s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if tail := strings.TrimSpace(text[start:]); tail != "" {
		out = append(out, tail)
	}
	return out
}

func renderCRAGPrompt(question string, references []types.Reference) string {
	out := "Question: " + question + "\n\nEvidence:\n"
	for i, r := range references {
		out += fmt.Sprintf("[%d] %s: %s\n", i+1, r.Title, r.Content)
	}
	return out
}

func cragJSONSchema() []byte {
	return utils.GenerateSchema[cragSchema]()
}
