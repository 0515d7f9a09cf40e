package orchestrator

import (
	"context"

	"github.com/groundedqa/sentra/internal/retrieval"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/web"
)

// dispatch executes retrieval and web augmentation per the plan (or
// the decomposition's sub-query DAG when one was produced), then
// fuses whatever each branch returned.
func (o *Orchestrator) dispatch(ctx context.Context, st *turnState) error {
	if st.decomposed != nil {
		return o.dispatchDecomposed(ctx, st)
	}
	return o.dispatchPlan(ctx, st, st.question)
}

// dispatchPlan runs a single (non-decomposed) question through the
// plan's selected steps, running index retrieval and web search
// concurrently when both are planned.
func (o *Orchestrator) dispatchPlan(ctx context.Context, st *turnState, question string) error {
	wantVector := st.plan.HasStep(types.StepVectorSearch)
	wantWeb := st.plan.HasStep(types.StepWebSearch)

	var refResult *retrieval.Result
	var webResults []types.WebResult
	var retrieveErr, webErr error

	if wantVector && wantWeb && o.pool != nil {
		errsOut := o.pool.Run(ctx, 2, func(ctx context.Context, i int) error {
			if i == 0 {
				refResult, retrieveErr = o.retrieval.Retrieve(ctx, question, retrieval.Options{TopK: 10})
				return nil
			}
			webResults, webErr = o.webSearch(ctx, question)
			return nil
		})
		_ = errsOut
	} else {
		if wantVector {
			refResult, retrieveErr = o.retrieval.Retrieve(ctx, question, retrieval.Options{TopK: 10})
		}
		if wantWeb {
			webResults, webErr = o.webSearch(ctx, question)
		}
	}

	if retrieveErr != nil {
		if !wantWeb {
			return retrieveErr
		}
		st.activity = append(st.activity, types.ActivityStep{
			Type: types.ActivityRetrieval, Description: "index retrieval failed, continuing with web results only",
			Data: map[string]interface{}{"error": retrieveErr.Error()},
		})
	}
	if refResult != nil {
		st.references = refResult.References
		st.activity = append(st.activity, refResult.Activity...)
		st.retrieveDiag = refResult.Diagnostics
	}

	if wantWeb {
		if webErr != nil {
			st.activity = append(st.activity, types.ActivityStep{
				Type: types.ActivityWebSearch, Description: "web search failed", Data: map[string]interface{}{"error": webErr.Error()},
			})
		} else {
			st.webResults, st.webFilterDiag = o.filterWeb(ctx, st, webResults, question, st.features.EnableWebQualityFilter)
			st.references = o.fuse(ctx, st, question)
		}
	}

	return nil
}

// dispatchDecomposed runs the planner's sub-query DAG: independent
// sub-queries retrieve in parallel, dependent ones wait on their
// prerequisites, and every sub-query's references are merged before
// fusion.
func (o *Orchestrator) dispatchDecomposed(ctx context.Context, st *turnState) error {
	parallelCount := 0
	sequentialCount := 0

	results, err := o.decomposer.RunDAG(ctx, *st.decomposed, func(ctx context.Context, sq types.SubQuery) (interface{}, error) {
		if len(sq.DependsOn) == 0 {
			parallelCount++
		} else {
			sequentialCount++
		}
		res, retrieveErr := o.retrieval.Retrieve(ctx, sq.Text, retrieval.Options{TopK: 6})
		if retrieveErr != nil {
			return nil, retrieveErr
		}
		return res, nil
	})
	if err != nil {
		return err
	}

	var merged []types.Reference
	for _, sq := range st.decomposed.SubQueries {
		res, ok := results[sq.ID].(*retrieval.Result)
		if !ok {
			continue
		}
		merged = append(merged, res.References...)
		st.activity = append(st.activity, res.Activity...)
		st.retrieveDiag = res.Diagnostics
	}
	st.references = merged
	st.decompDiag = &types.DecompositionDiagnostics{
		SubQueryCount: len(st.decomposed.SubQueries), ParallelExecuted: parallelCount, SequentialExecuted: sequentialCount,
	}
	st.activity = append(st.activity, types.ActivityStep{
		Type: types.ActivityDecompose, Description: "decomposed question into sub-queries",
		Data: map[string]interface{}{"sub_query_count": len(st.decomposed.SubQueries)},
	})

	if st.plan.HasStep(types.StepWebSearch) {
		webResults, webErr := o.webSearch(ctx, st.question)
		if webErr == nil {
			st.webResults, st.webFilterDiag = o.filterWeb(ctx, st, webResults, st.question, st.features.EnableWebQualityFilter)
			st.references = o.fuse(ctx, st, st.question)
		}
	}

	return nil
}

func (o *Orchestrator) webSearch(ctx context.Context, question string) ([]types.WebResult, error) {
	if o.web == nil {
		return nil, nil
	}
	return o.web.WebSearch(ctx, question, 10)
}

// filterWeb scores each web result against the question and the
// references already pulled from the index, then applies the quality
// threshold when enabled. Scoring runs regardless of enabled so
// st.webResults always carries real Relevance/Novelty for downstream
// fusion's semantic boost, not just for the filter decision.
func (o *Orchestrator) filterWeb(ctx context.Context, st *turnState, results []types.WebResult, question string, enabled bool) ([]types.WebResult, *types.WebFilterDiagnostics) {
	o.scoreWeb(ctx, st, results, question)
	if !enabled {
		return results, nil
	}
	filtered := web.Filter(results)
	return filtered.Kept, &types.WebFilterDiagnostics{Kept: len(filtered.Kept), Removed: len(filtered.Removed)}
}

// scoreWeb embeds every result lacking a vector and the query itself,
// then fills in Relevance/Novelty/Overall against the index references
// already on st, preserving each result's Authority.
func (o *Orchestrator) scoreWeb(ctx context.Context, st *turnState, results []types.WebResult, question string) {
	if len(results) == 0 {
		return
	}

	var queryEmbedding []float32
	if vecs, err := o.llm.Embed(ctx, []string{question}); err == nil && len(vecs) == 1 {
		queryEmbedding = vecs[0]
	}

	knownEmbeddings := make([][]float32, 0, len(st.references))
	for _, ref := range st.references {
		if len(ref.Embedding) > 0 {
			knownEmbeddings = append(knownEmbeddings, ref.Embedding)
		}
	}

	for i := range results {
		if len(results[i].Embedding) == 0 {
			if vecs, err := o.llm.Embed(ctx, []string{results[i].Snippet}); err == nil && len(vecs) == 1 {
				results[i].Embedding = vecs[0]
			}
		}
		results[i].Scores = web.Score(results[i], queryEmbedding, knownEmbeddings, results[i].Scores.Authority)
	}
}

func (o *Orchestrator) fuse(ctx context.Context, st *turnState, question string) []types.Reference {
	var queryEmbedding []float32
	if st.features.EnableSemanticBoost {
		if vecs, err := o.llm.Embed(ctx, []string{question}); err == nil && len(vecs) == 1 {
			queryEmbedding = vecs[0]
		}
	}
	return web.Fuse(st.references, st.webResults, int(st.features.RRFConstant), st.features.SemanticBoostWeight, queryEmbedding, st.features.EnableSemanticBoost)
}
