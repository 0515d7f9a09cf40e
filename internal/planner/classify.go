// Package planner handles intent classification, plan generation, and
// optional query decomposition, built on the same structured-completion
// call shape (CompleteStructured + JSON schema) used throughout
// internal/retrieval and internal/ctxpipeline, applied here to the
// planner's own sum-type schemas.
package planner

import (
	"context"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/utils"
)

// Router classifies intent and resolves a RouteProfile for it.
type Router struct {
	llm       interfaces.LLMClient
	confFloor float64
	profiles  map[types.IntentLabel]types.RouteProfile
}

// NewRouter builds a Router. confFloor is intentConfThreshold:
// classifications below it are remapped to conversational.
func NewRouter(llm interfaces.LLMClient, confFloor float64) *Router {
	return &Router{llm: llm, confFloor: confFloor, profiles: defaultProfiles()}
}

func defaultProfiles() map[types.IntentLabel]types.RouteProfile {
	return map[types.IntentLabel]types.RouteProfile{
		types.IntentFAQ:           {ModelHint: "fast", MaxTokens: 512, RetrieverStrategy: types.StrategyFast},
		types.IntentFactual:       {ModelHint: "fast", MaxTokens: 768, RetrieverStrategy: types.StrategyFast},
		types.IntentResearch:      {ModelHint: "deep", MaxTokens: 2048, RetrieverStrategy: types.StrategyThorough},
		types.IntentConversational: {ModelHint: "fast", MaxTokens: 512, RetrieverStrategy: types.StrategyFast},
	}
}

type intentSchema struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Classify runs intent classification as a strict-schema structured
// completion, with low-confidence results remapped to conversational
// per intentConfThreshold.
func (r *Router) Classify(ctx context.Context, question string, history []types.Message) (types.Intent, error) {
	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Classify the user's question into exactly one of: faq, research, factual, conversational. Respond with JSON only."},
	}
	for _, m := range history {
		msgs = append(msgs, interfaces.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	msgs = append(msgs, interfaces.ChatMessage{Role: "user", Content: question})

	var out intentSchema
	if err := r.llm.CompleteStructured(ctx, msgs, intentJSONSchema(), &out, interfaces.ChatOptions{Temperature: 0.0}); err != nil {
		return types.Intent{}, err
	}

	label := types.IntentLabel(out.Intent)
	if !validIntent(label) || out.Confidence < r.confFloor {
		common.PipelineInfo(ctx, "planner", "intent_downgraded", map[string]interface{}{
			"raw_intent": out.Intent, "confidence": out.Confidence, "floor": r.confFloor,
		})
		label = types.IntentConversational
	}

	profile, ok := r.profiles[label]
	if !ok {
		profile = r.profiles[types.IntentConversational]
	}

	intent := types.Intent{Label: label, Confidence: out.Confidence, Reasoning: out.Reasoning, Profile: profile}
	common.PipelineInfo(ctx, "planner", "classify", map[string]interface{}{"intent": label, "confidence": out.Confidence})
	return intent, nil
}

func validIntent(l types.IntentLabel) bool {
	switch l {
	case types.IntentFAQ, types.IntentResearch, types.IntentFactual, types.IntentConversational:
		return true
	}
	return false
}

// intentJSONSchema generates intentSchema's JSON schema via reflection
// rather than a hand-built map literal, so the wire schema can never
// drift from the struct.
func intentJSONSchema() []byte {
	return utils.GenerateSchema[intentSchema]()
}
