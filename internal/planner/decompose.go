package planner

import (
	"context"
	"fmt"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/concurrency"
	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/utils"
)

// Decomposer assesses a question's complexity and, when warranted,
// splits it into a DAG of independent sub-queries.
type Decomposer struct {
	llm       interfaces.LLMClient
	threshold float64
	pool      *concurrency.Pool
}

// NewDecomposer builds a Decomposer. threshold is decompositionThreshold;
// pool bounds how many sub-queries run concurrently.
func NewDecomposer(llm interfaces.LLMClient, threshold float64, pool *concurrency.Pool) *Decomposer {
	return &Decomposer{llm: llm, threshold: threshold, pool: pool}
}

type complexitySchema struct {
	Complexity         float64 `json:"complexity"`
	NeedsDecomposition bool    `json:"needs_decomposition"`
}

// Assess runs the pre-decomposition complexity check.
func (d *Decomposer) Assess(ctx context.Context, question string) (types.ComplexityAssessment, error) {
	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Rate how complex this question is on a 0..1 scale and whether it should be decomposed into independent sub-questions. Respond with JSON only."},
		{Role: "user", Content: question},
	}
	var out complexitySchema
	if err := d.llm.CompleteStructured(ctx, msgs, complexityJSONSchema(), &out, interfaces.ChatOptions{Temperature: 0.0}); err != nil {
		return types.ComplexityAssessment{}, err
	}
	assessment := types.ComplexityAssessment{Complexity: out.Complexity, NeedsDecomposition: out.NeedsDecomposition && out.Complexity >= d.threshold}
	common.PipelineInfo(ctx, "planner", "assess", map[string]interface{}{
		"complexity": assessment.Complexity, "needs_decomposition": assessment.NeedsDecomposition,
	})
	return assessment, nil
}

type decomposeSchema struct {
	SubQueries []struct {
		ID        string   `json:"id"`
		Text      string   `json:"text"`
		DependsOn []string `json:"depends_on"`
	} `json:"sub_queries"`
	SynthesisPrompt string `json:"synthesis_prompt"`
}

// Decompose produces a DecomposedQuery, verifying DAG acyclicity via
// topological sort. On a cycle it falls back to a single-node DAG
// wrapping the original question instead of failing the turn.
func (d *Decomposer) Decompose(ctx context.Context, question string) (types.DecomposedQuery, error) {
	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Split this question into independent or dependent sub-questions forming a DAG (depends_on lists prerequisite ids), plus a synthesis_prompt describing how to combine the answers. Respond with JSON only."},
		{Role: "user", Content: question},
	}
	var out decomposeSchema
	if err := d.llm.CompleteStructured(ctx, msgs, decomposeJSONSchema(), &out, interfaces.ChatOptions{Temperature: 0.2}); err != nil {
		return fallbackDecomposition(question), nil
	}

	subs := make([]types.SubQuery, 0, len(out.SubQueries))
	for _, s := range out.SubQueries {
		subs = append(subs, types.SubQuery{ID: s.ID, Text: s.Text, DependsOn: s.DependsOn})
	}
	if len(subs) == 0 {
		return fallbackDecomposition(question), nil
	}

	if _, err := topoSort(subs); err != nil {
		common.PipelineWarn(ctx, "planner", "decompose_cycle", map[string]interface{}{"error": err.Error()})
		return fallbackDecomposition(question), nil
	}

	dq := types.DecomposedQuery{SubQueries: subs, SynthesisPrompt: out.SynthesisPrompt}
	common.PipelineInfo(ctx, "planner", "decompose", map[string]interface{}{"sub_query_count": len(subs)})
	return dq, nil
}

func fallbackDecomposition(question string) types.DecomposedQuery {
	return types.DecomposedQuery{
		SubQueries:      []types.SubQuery{{ID: "q0", Text: question}},
		SynthesisPrompt: "Answer using the single sub-query result directly.",
	}
}

// topoSort returns subs ordered so every node appears after its
// dependencies, or an error if the dependency graph has a cycle.
func topoSort(subs []types.SubQuery) ([]types.SubQuery, error) {
	byID := make(map[string]types.SubQuery, len(subs))
	for _, s := range subs {
		byID[s.ID] = s
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make(map[string]int, len(subs))
	var order []types.SubQuery

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case black:
			return nil
		case gray:
			return fmt.Errorf("cycle detected at sub-query %q", id)
		}
		state[id] = gray
		node, ok := byID[id]
		if !ok {
			return fmt.Errorf("sub-query %q depends on unknown id", id)
		}
		for _, dep := range node.DependsOn {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = black
		order = append(order, node)
		return nil
	}

	for _, s := range subs {
		if err := visit(s.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// SubQueryFn resolves one sub-query's text into a result value.
type SubQueryFn func(ctx context.Context, sq types.SubQuery) (interface{}, error)

// RunDAG executes a decomposed query's sub-queries respecting
// dependency order: independent sub-queries (no unmet dependency) run
// in parallel up to the decomposer's pool size, and a sub-query only
// starts once every sub-query it depends on has completed.
func (d *Decomposer) RunDAG(ctx context.Context, dq types.DecomposedQuery, fn SubQueryFn) (map[string]interface{}, error) {
	ordered, err := topoSort(dq.SubQueries)
	if err != nil {
		return nil, errs.New(errs.InternalInvariant, err)
	}

	results := make(map[string]interface{}, len(ordered))
	// Process ordered in dependency-respecting waves: a wave is every
	// not-yet-run node whose dependencies are already in results.
	remaining := ordered
	for len(remaining) > 0 {
		var wave []types.SubQuery
		var next []types.SubQuery
		for _, sq := range remaining {
			if depsReady(sq, results) {
				wave = append(wave, sq)
			} else {
				next = append(next, sq)
			}
		}
		if len(wave) == 0 {
			return nil, errs.New(errs.InternalInvariant, fmt.Errorf("sub-query dependencies unsatisfiable"))
		}

		waveResults := make([]interface{}, len(wave))
		waveErrs := d.pool.Run(ctx, len(wave), func(ctx context.Context, i int) error {
			res, err := fn(ctx, wave[i])
			if err != nil {
				return err
			}
			waveResults[i] = res
			return nil
		})
		for i, werr := range waveErrs {
			if werr != nil {
				return nil, werr
			}
			results[wave[i].ID] = waveResults[i]
		}
		remaining = next
	}
	return results, nil
}

func depsReady(sq types.SubQuery, results map[string]interface{}) bool {
	for _, dep := range sq.DependsOn {
		if _, ok := results[dep]; !ok {
			return false
		}
	}
	return true
}

func complexityJSONSchema() []byte {
	return utils.GenerateSchema[complexitySchema]()
}

func decomposeJSONSchema() []byte {
	return utils.GenerateSchema[decomposeSchema]()
}
