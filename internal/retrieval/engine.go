// Package retrieval is the query builder, four-stage fallback chain,
// lazy mode, and adaptive reformulation over a SearchClient, run as a
// sequence of small, single-purpose stages by the orchestrator,
// generalized from a fixed vendor-specific query shape to the abstract
// interfaces.SearchClient contract so the fallback chain works over
// Elasticsearch or Qdrant identically.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/config"
	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// Options parameterizes a Retrieve call's query-builder parameters.
type Options struct {
	TopK             int
	Fields           []string
	Filter           string
	SemanticConfig   string
	VectorFilterMode interfaces.VectorFilterMode
	Index            string // non-empty selects the federated secondary index
}

// Result is Retrieve's output.
type Result struct {
	References  []types.Reference
	Activity    []types.ActivityStep
	Diagnostics types.RetrievalDiagnostics
}

// Engine runs the fallback chain and adaptive reformulation against a
// primary SearchClient, optionally federating to a named secondary
// index.
type Engine struct {
	primary    interfaces.SearchClient
	secondary  map[string]interfaces.SearchClient
	llm        interfaces.LLMClient
	features   config.FeatureSet
}

// NewEngine builds a retrieval Engine. secondary maps an index name to
// the SearchClient that serves it, for optional federated multi-index
// retrieval.
func NewEngine(primary interfaces.SearchClient, secondary map[string]interfaces.SearchClient, llm interfaces.LLMClient, features config.FeatureSet) *Engine {
	return &Engine{primary: primary, secondary: secondary, llm: llm, features: features}
}

func (e *Engine) clientFor(opts Options) interfaces.SearchClient {
	if opts.Index != "" {
		if c, ok := e.secondary[opts.Index]; ok {
			return c
		}
	}
	return e.primary
}

// Retrieve runs the four-stage fallback chain, then adaptive
// reformulation, for query against the configured search client.
func (e *Engine) Retrieve(ctx context.Context, query string, opts Options) (*Result, error) {
	client := e.clientFor(opts)
	activity := []types.ActivityStep{}

	resp, diag, err := e.runFallbackChain(ctx, client, query, opts)
	if err != nil {
		return nil, err
	}

	if e.features.EnableAdaptiveRetrieval {
		reformActivity, reformResp, reformDiag := e.reformulate(ctx, client, query, opts, resp, diag)
		activity = append(activity, reformActivity...)
		if reformResp != nil {
			resp = reformResp
			diag = reformDiag
		}
	}

	common.PipelineInfo(ctx, "retrieval", "retrieve", map[string]interface{}{
		"query": query, "count": len(resp.Values), "attempts": diag.Attempts,
	})

	return &Result{References: resp.Values, Activity: activity, Diagnostics: diag}, nil
}

// runFallbackChain runs the first-success-terminates fallback chain.
// Stage 4 (lazy mode) is handled by RetrieveLazy instead of here,
// since it changes the return shape rather than just the query.
func (e *Engine) runFallbackChain(ctx context.Context, client interfaces.SearchClient, query string, opts Options) (*interfaces.SearchResponse, types.RetrievalDiagnostics, error) {
	diag := types.RetrievalDiagnostics{Attempted: true}

	// Stage 1: primary reranker threshold.
	diag.Attempts++
	resp, err := client.Search(ctx, buildQuery(query, opts, e.features.RerankerThreshold))
	if err == nil && len(resp.Values) >= e.features.MinDocs {
		diag.Succeeded = true
		diag.ThresholdUsed = e.features.RerankerThreshold
		fillScoreStats(&diag, resp.Values)
		diag.Coverage = resp.Coverage
		return resp, diag, nil
	}
	if err != nil && !errs.Recoverable(err) && errs.Terminal(err) {
		return nil, diag, err
	}

	// Stage 2: relaxed reranker threshold.
	diag.Attempts++
	resp2, err2 := client.Search(ctx, buildQuery(query, opts, e.features.RelaxedRerankThreshold))
	if err2 == nil && len(resp2.Values) > 0 {
		diag.Succeeded = true
		diag.ThresholdUsed = e.features.RelaxedRerankThreshold
		diag.FallbackReason = "relaxed_threshold"
		fillScoreStats(&diag, resp2.Values)
		diag.Coverage = resp2.Coverage
		return resp2, diag, nil
	}

	// Stage 3: pure vector search.
	diag.Attempts++
	q3 := buildQuery(query, opts, 0)
	q3.VectorOnly = true
	resp3, err3 := client.Search(ctx, q3)
	if err3 == nil && len(resp3.Values) > 0 {
		diag.Succeeded = true
		diag.ThresholdUsed = 0
		diag.FallbackReason = "vector_only"
		fillScoreStats(&diag, resp3.Values)
		diag.Coverage = resp3.Coverage
		return resp3, diag, nil
	}

	diag.Succeeded = false
	diag.FallbackReason = "exhausted"
	return nil, diag, errs.New(errs.RetrievalEmpty, fmt.Errorf("no results for query %q after %d attempts", query, diag.Attempts))
}

// LazyResult is RetrieveLazy's output: summaries up front, full
// content loaded on demand.
type LazyResult struct {
	Summaries   []types.Reference
	Diagnostics types.RetrievalDiagnostics
	load        func(ctx context.Context, id string) (string, error)
}

// Load fetches the full content for a summary reference by id.
func (r *LazyResult) Load(ctx context.Context, id string) (string, error) {
	return r.load(ctx, id)
}

// RetrieveLazy returns reference summaries immediately, deferring full
// content until the critic or answer length demands it.
func (e *Engine) RetrieveLazy(ctx context.Context, query string, opts Options) (*LazyResult, error) {
	client := e.clientFor(opts)
	resp, diag, err := e.runFallbackChain(ctx, client, query, opts)
	if err != nil {
		return nil, err
	}

	summaries := make([]types.Reference, len(resp.Values))
	full := make(map[string]types.Reference, len(resp.Values))
	for i, ref := range resp.Values {
		full[ref.ID] = ref
		s := ref
		s.Content = summarize(ref.Content)
		s.FullyLoaded = false
		summaries[i] = s
	}

	return &LazyResult{
		Summaries:   summaries,
		Diagnostics: diag,
		load: func(_ context.Context, id string) (string, error) {
			ref, ok := full[id]
			if !ok {
				return "", errs.New(errs.RetrievalEmpty, fmt.Errorf("no such reference: %s", id))
			}
			return ref.Content, nil
		},
	}, nil
}

func summarize(content string) string {
	const maxLen = 240
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "…"
}

func buildQuery(query string, opts Options, threshold float64) interfaces.SearchQuery {
	mode := opts.VectorFilterMode
	if mode == "" {
		mode = interfaces.FilterModeAuto
		if opts.Filter != "" {
			mode = interfaces.FilterModePreFilter
		}
	}
	topK := opts.TopK
	if topK == 0 {
		topK = 10
	}
	return interfaces.SearchQuery{
		Text:              query,
		TopK:              topK,
		RerankerThreshold: threshold,
		Fields:            opts.Fields,
		Filter:            opts.Filter,
		SemanticConfig:    opts.SemanticConfig,
		VectorFilterMode:  mode,
	}
}

func fillScoreStats(diag *types.RetrievalDiagnostics, refs []types.Reference) {
	if len(refs) == 0 {
		return
	}
	sum, min, max := 0.0, refs[0].Score, refs[0].Score
	for _, r := range refs {
		sum += r.Score
		if r.Score < min {
			min = r.Score
		}
		if r.Score > max {
			max = r.Score
		}
	}
	diag.MeanScore = sum / float64(len(refs))
	diag.MinScore = min
	diag.MaxScore = max
}

// reformulationSchema is the shape completeStructured enforces for a
// reformulated query.
type reformulationSchema struct {
	OriginalQuery string `json:"original_query"`
	NewQuery      string `json:"new_query"`
	Reason        string `json:"reason"`
}

// reformulate retries the search up to MaxReformulations times when
// coverage/diversity/authority fall below threshold, logging each
// attempt and outcome to activity.
func (e *Engine) reformulate(ctx context.Context, client interfaces.SearchClient, query string, opts Options, resp *interfaces.SearchResponse, diag types.RetrievalDiagnostics) ([]types.ActivityStep, *interfaces.SearchResponse, types.RetrievalDiagnostics) {
	activity := []types.ActivityStep{}
	current := resp
	currentQuery := query
	currentDiag := diag

	for attempt := 0; attempt < e.features.MaxReformulations; attempt++ {
		if !needsReformulation(current, e.features) {
			break
		}

		var out reformulationSchema
		schema := structuredSchema()
		msgs := []interfaces.ChatMessage{
			{Role: "system", Content: "You reformulate search queries to improve retrieval coverage, diversity, or authority. Respond with JSON only."},
			{Role: "user", Content: fmt.Sprintf("Original query: %q\nCurrent coverage: %.2f. Produce a reformulated query.", currentQuery, current.Coverage)},
		}
		if err := e.llm.CompleteStructured(ctx, msgs, schema, &out, interfaces.ChatOptions{Temperature: 0.2}); err != nil {
			activity = append(activity, types.ActivityStep{
				Type:        types.ActivityReformulate,
				Description: "reformulation failed",
				Data:        map[string]interface{}{"originalQuery": currentQuery, "error": err.Error()},
			})
			break
		}

		activity = append(activity, types.ActivityStep{
			Type:        types.ActivityReformulate,
			Description: "attempted reformulation",
			Data:        map[string]interface{}{"originalQuery": currentQuery, "newQuery": out.NewQuery, "reason": out.Reason},
		})

		newResp, newDiag, err := e.runFallbackChain(ctx, client, out.NewQuery, opts)
		if err != nil {
			continue
		}
		activity = append(activity, types.ActivityStep{
			Type:        types.ActivityReformulate,
			Description: "reformulation outcome",
			Data:        map[string]interface{}{"originalQuery": currentQuery, "newQuery": out.NewQuery, "coverage": newResp.Coverage},
		})
		current = newResp
		currentQuery = out.NewQuery
		currentDiag = newDiag
	}

	if current == resp {
		return activity, nil, currentDiag
	}
	return activity, current, currentDiag
}

func needsReformulation(resp *interfaces.SearchResponse, fs config.FeatureSet) bool {
	if resp.Coverage < fs.MinCoverage {
		return true
	}
	diversity := diversityOf(resp.Values)
	if diversity < fs.MinDiversity {
		return true
	}
	if meanScore(resp.Values) < fs.MinAuthority {
		return true
	}
	return false
}

func diversityOf(refs []types.Reference) float64 {
	seen := map[string]struct{}{}
	for _, r := range refs {
		seen[r.Title] = struct{}{}
	}
	if len(refs) == 0 {
		return 0
	}
	return float64(len(seen)) / float64(len(refs))
}

func meanScore(refs []types.Reference) float64 {
	if len(refs) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range refs {
		sum += r.Score
	}
	return sum / float64(len(refs))
}

func structuredSchema() []byte {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"original_query": map[string]interface{}{"type": "string"},
			"new_query":      map[string]interface{}{"type": "string"},
			"reason":         map[string]interface{}{"type": "string"},
		},
		"required":             []string{"original_query", "new_query", "reason"},
		"additionalProperties": false,
	}
	b, _ := json.Marshal(schema)
	return b
}
