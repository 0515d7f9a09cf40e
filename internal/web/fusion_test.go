package web

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundedqa/sentra/internal/types"
)

func TestFilter_keepsAboveThresholdsDropsBelow(t *testing.T) {
	results := []types.WebResult{
		{ID: "good", Scores: types.WebScores{Authority: 0.8, Novelty: 0.5, Relevance: 0.9, Overall: 0.8}},
		{ID: "low-authority", Scores: types.WebScores{Authority: 0.1, Novelty: 0.5, Relevance: 0.9, Overall: 0.5}},
		{ID: "low-relevance", Scores: types.WebScores{Authority: 0.8, Novelty: 0.5, Relevance: 0.1, Overall: 0.3}},
	}
	out := Filter(results)
	assert.Len(t, out.Kept, 1)
	assert.Equal(t, "good", out.Kept[0].ID)
	assert.Len(t, out.Removed, 2)
}

func TestFilter_sortsKeptByOverallDescending(t *testing.T) {
	results := []types.WebResult{
		{ID: "mid", Scores: types.WebScores{Authority: 0.5, Novelty: 0.5, Relevance: 0.5, Overall: 0.5}},
		{ID: "top", Scores: types.WebScores{Authority: 0.9, Novelty: 0.9, Relevance: 0.9, Overall: 0.9}},
	}
	out := Filter(results)
	assert.Equal(t, []string{"top", "mid"}, []string{out.Kept[0].ID, out.Kept[1].ID})
}

func TestFuse_dedupesByURLAcrossIndexAndWeb(t *testing.T) {
	indexRefs := []types.Reference{{ID: "idx1", URL: "https://example.com/a", Content: "from index"}}
	webRefs := []types.WebResult{{ID: "web1", URL: "https://example.com/a", Snippet: "from web"}}

	out := Fuse(indexRefs, webRefs, 60, 0, nil, false)
	assert.Len(t, out, 1)
	assert.Equal(t, "from index", out[0].Content)
}

func TestFuse_rankedHigherWhenPresentInBothSources(t *testing.T) {
	indexRefs := []types.Reference{
		{ID: "only-index", Content: "a"},
		{ID: "shared", URL: "https://example.com/shared", Content: "b"},
	}
	webRefs := []types.WebResult{
		{ID: "shared", URL: "https://example.com/shared", Snippet: "b-web"},
	}
	out := Fuse(indexRefs, webRefs, 60, 0, nil, false)
	assert.Equal(t, "b", out[0].Content, "item present in both index and web should rank first")
}

func TestFuse_webOnlyItemBecomesWebSourcedReference(t *testing.T) {
	webRefs := []types.WebResult{{ID: "w1", URL: "https://example.com/w1", Snippet: "only on the web"}}
	out := Fuse(nil, webRefs, 60, 0, nil, false)
	assert.Len(t, out, 1)
	assert.Equal(t, types.SourceWeb, out[0].Source)
	assert.Equal(t, "only on the web", out[0].Content)
}
