// Package search is a hybrid keyword+vector search client fronting
// Elasticsearch, with an optional federated secondary index against
// Qdrant, using the query/point shapes Qdrant itself expects.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/logger"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// ESClient is the primary hybrid search client. It assembles a bool
// query with a keyword clause, an optional knn vector clause, and an
// optional filter, then folds Elasticsearch's own relevance score
// into a types.Reference list.
type ESClient struct {
	es        *elasticsearch.Client
	index     string
	embed     interfaces.LLMClient
	tokenizer Tokenizer
}

// NewESClient builds an ESClient against the given index, embedding
// queries with embedClient for the vector half of the hybrid query.
func NewESClient(es *elasticsearch.Client, index string, embedClient interfaces.LLMClient, tokenizer Tokenizer) *ESClient {
	return &ESClient{es: es, index: index, embed: embedClient, tokenizer: tokenizer}
}

type esQueryBody struct {
	Size  int                    `json:"size"`
	Query map[string]interface{} `json:"query"`
	KNN   map[string]interface{} `json:"knn,omitempty"`
	Min   float64                `json:"min_score,omitempty"`
}

// Search implements interfaces.SearchClient.
func (c *ESClient) Search(ctx context.Context, q interfaces.SearchQuery) (*interfaces.SearchResponse, error) {
	must := []map[string]interface{}{
		{
			"match": map[string]interface{}{
				"content": map[string]interface{}{
					"query": c.tokenizer.Tokenize(q.Text),
				},
			},
		},
	}

	body := esQueryBody{
		Size: q.TopK,
		Query: map[string]interface{}{
			"bool": map[string]interface{}{
				"must": must,
			},
		},
	}

	if q.Filter != "" {
		filterClause, err := translateFilter(q.Filter)
		if err != nil {
			return nil, errs.New(errs.UpstreamInvalidReq, fmt.Errorf("translate filter: %w", err))
		}
		boolQuery := body.Query["bool"].(map[string]interface{})
		if q.VectorFilterMode == interfaces.FilterModePreFilter {
			boolQuery["filter"] = filterClause
		} else {
			// postFilter semantics: apply the filter as an additional must
			// clause so it still participates in relevance, just without
			// narrowing the candidate set before scoring (Elasticsearch has
			// no separate post-filter stage for knn the way Azure AI Search
			// does, so the distinction is modeled as an added clause weight).
			must = append(must, filterClause.(map[string]interface{}))
			boolQuery["must"] = must
		}
	}

	if !q.VectorOnly && c.embed != nil {
		vec, err := c.embed.Embed(ctx, []string{q.Text})
		if err == nil && len(vec) == 1 {
			body.KNN = map[string]interface{}{
				"field":          "embedding",
				"query_vector":   vec[0],
				"k":              q.TopK,
				"num_candidates": q.TopK * 10,
			}
		} else if err != nil {
			logger.FromContext(ctx).WithError(err).Warn("search embed failed, falling back to keyword-only")
		}
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, errs.New(errs.InternalInvariant, err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  &buf,
	}
	resp, err := req.Do(ctx, c.es)
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, err)
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, errs.New(errs.UpstreamTransient, fmt.Errorf("elasticsearch returned %s", resp.Status()))
	}

	var parsed esSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errs.New(errs.InternalInvariant, fmt.Errorf("decode search response: %w", err))
	}

	refs := make([]types.Reference, 0, len(parsed.Hits.Hits))
	var captions, answers []string
	for _, hit := range parsed.Hits.Hits {
		if hit.Score < q.RerankerThreshold {
			continue
		}
		refs = append(refs, types.Reference{
			ID:      hit.ID,
			Title:   hit.Source.Title,
			Content: hit.Source.Content,
			Score:   hit.Score,
		})
		if hit.Source.Caption != "" {
			captions = append(captions, hit.Source.Caption)
		}
	}

	coverage := 0.0
	if q.TopK > 0 {
		coverage = float64(len(refs)) / float64(q.TopK)
		if coverage > 1 {
			coverage = 1
		}
	}

	return &interfaces.SearchResponse{
		Values:   refs,
		Coverage: coverage,
		Debug:    interfaces.SearchDebug{Captions: captions, Answers: answers},
	}, nil
}

type esSearchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Content string `json:"content"`
				Title   string `json:"title"`
				Caption string `json:"caption"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// translateFilter turns an OData-style filter expression (e.g.
// "knowledgeBaseID eq 'kb1'") into an Elasticsearch term query. Only
// the equality subset the orchestrator actually emits is supported;
// anything else is rejected rather than silently ignored.
func translateFilter(expr string) (interface{}, error) {
	field, value, ok := parseEq(expr)
	if !ok {
		return nil, fmt.Errorf("unsupported filter expression: %q", expr)
	}
	return map[string]interface{}{
		"term": map[string]interface{}{
			field: value,
		},
	}, nil
}

func parseEq(expr string) (field, value string, ok bool) {
	const sep = " eq "
	idx := indexOf(expr, sep)
	if idx < 0 {
		return "", "", false
	}
	field = expr[:idx]
	value = trimQuotes(expr[idx+len(sep):])
	return field, value, true
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1]
	}
	return s
}
