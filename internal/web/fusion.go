// Package web handles external web fetch/search, quality filtering,
// and reciprocal-rank fusion with index references. Scoring and fusion
// are pure functions over immutable slices, generalized from
// vendor-specific retriever scoring passes to a vendor-independent web
// result shape.
package web

import (
	"math"
	"sort"

	"github.com/groundedqa/sentra/internal/types"
)

// FilterResult is Filter's output.
type FilterResult struct {
	Kept    []types.WebResult
	Removed []types.WebResult
}

// Score computes the authority/novelty/relevance/overall scores for a
// web result, given the result's own embedding, the query embedding,
// and the embeddings of references already known from the index.
func Score(result types.WebResult, queryEmbedding []float32, knownEmbeddings [][]float32, authority float64) types.WebScores {
	novelty := 1 - maxCosine(result.Embedding, knownEmbeddings)
	if novelty < 0 {
		novelty = 0
	}
	if novelty > 1 {
		novelty = 1
	}
	relevance := cosine(queryEmbedding, result.Embedding)
	overall := 0.3*authority + 0.3*novelty + 0.4*relevance
	return types.WebScores{Authority: authority, Novelty: novelty, Relevance: relevance, Overall: overall}
}

// Filter applies the keep/drop thresholds and sorts survivors by
// overall score descending.
func Filter(results []types.WebResult) FilterResult {
	var kept, removed []types.WebResult
	for _, r := range results {
		if r.Scores.Authority >= 0.3 && (1-r.Scores.Novelty) <= 0.9 && r.Scores.Relevance >= 0.3 {
			kept = append(kept, r)
		} else {
			removed = append(removed, r)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Scores.Overall > kept[j].Scores.Overall })
	return FilterResult{Kept: kept, Removed: removed}
}

// fusedItem is one deduped item carried through RRF, tagged by its
// normalized identity (id or URL) so index and web hits merge.
type fusedItem struct {
	key        string
	ref        *types.Reference
	web        *types.WebResult
	ranks      []int
	embedding  []float32
}

// Fuse performs reciprocal-rank fusion between index references and
// web results, with an optional semantic boost toward queryEmbedding.
// It returns references ordered by fused score descending; web-only
// items are represented as types.Reference with
// Source=SourceWeb.
func Fuse(indexRefs []types.Reference, webRefs []types.WebResult, k int, semanticBoostWeight float64, queryEmbedding []float32, semanticBoostEnabled bool) []types.Reference {
	if k <= 0 {
		k = 60
	}
	items := map[string]*fusedItem{}
	order := []string{}

	addRank := func(key string, rank int) {
		it, ok := items[key]
		if !ok {
			it = &fusedItem{key: key}
			items[key] = it
			order = append(order, key)
		}
		it.ranks = append(it.ranks, rank)
	}

	for i := range indexRefs {
		ref := indexRefs[i]
		key := fuseKey(ref.ID, ref.URL)
		addRank(key, i+1)
		it := items[key]
		it.ref = &indexRefs[i]
		it.embedding = ref.Embedding
	}
	for i := range webRefs {
		w := webRefs[i]
		key := fuseKey(w.ID, w.URL)
		addRank(key, i+1)
		it := items[key]
		it.web = &webRefs[i]
		if it.embedding == nil {
			it.embedding = w.Embedding
		}
	}

	type scored struct {
		key   string
		score float64
	}
	scoredItems := make([]scored, 0, len(order))
	for _, key := range order {
		it := items[key]
		rrf := 0.0
		for _, r := range it.ranks {
			rrf += 1.0 / float64(k+r)
		}
		final := rrf
		if semanticBoostEnabled && len(queryEmbedding) > 0 {
			sim := cosine(queryEmbedding, it.embedding)
			final = (1-semanticBoostWeight)*rrf + semanticBoostWeight*sim
		}
		scoredItems = append(scoredItems, scored{key: key, score: final})
	}
	sort.SliceStable(scoredItems, func(i, j int) bool { return scoredItems[i].score > scoredItems[j].score })

	out := make([]types.Reference, 0, len(scoredItems))
	for _, s := range scoredItems {
		it := items[s.key]
		switch {
		case it.ref != nil:
			merged := *it.ref
			merged.Score = s.score
			out = append(out, merged)
		case it.web != nil:
			out = append(out, types.Reference{
				ID:       it.web.ID,
				Title:    it.web.Title,
				URL:      it.web.URL,
				Content:  it.web.Snippet,
				Score:    s.score,
				Source:   types.SourceWeb,
				Embedding: it.web.Embedding,
			})
		}
	}
	return out
}

func fuseKey(id, url string) string {
	if url != "" {
		return "url:" + url
	}
	return "id:" + id
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func maxCosine(target []float32, candidates [][]float32) float64 {
	max := 0.0
	for _, c := range candidates {
		if sim := cosine(target, c); sim > max {
			max = sim
		}
	}
	return max
}
