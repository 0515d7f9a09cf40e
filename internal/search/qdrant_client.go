package search

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/groundedqa/sentra/internal/errs"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// QdrantClient is the optional federated secondary index: a second
// vector collection an operator can point part of their corpus at,
// selected when a caller names it explicitly rather than always
// querying both indexes. Uses a plain Reference payload rather than a
// chunk/knowledge-base specific shape, over the query/point wire
// shapes Qdrant's client expects.
type QdrantClient struct {
	cli        *qdrant.Client
	collection string
	embed      interfaces.LLMClient
}

// NewQdrantClient builds a client against an existing collection.
func NewQdrantClient(cli *qdrant.Client, collection string, embedClient interfaces.LLMClient) *QdrantClient {
	return &QdrantClient{cli: cli, collection: collection, embed: embedClient}
}

// EnsureCollection creates the collection with the given vector
// dimension if it does not already exist.
func (c *QdrantClient) EnsureCollection(ctx context.Context, dims int) error {
	exists, err := c.cli.CollectionExists(ctx, c.collection)
	if err != nil {
		return errs.New(errs.UpstreamTransient, fmt.Errorf("check collection: %w", err))
	}
	if exists {
		return nil
	}
	err = c.cli.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return errs.New(errs.UpstreamTransient, fmt.Errorf("create collection %s: %w", c.collection, err))
	}
	return nil
}

// Upsert indexes refs, embedding any that don't already carry a
// vector.
func (c *QdrantClient) Upsert(ctx context.Context, refs []types.Reference) error {
	points := make([]*qdrant.PointStruct, 0, len(refs))
	for _, ref := range refs {
		vec := ref.Embedding
		if len(vec) == 0 && c.embed != nil {
			embedded, err := c.embed.Embed(ctx, []string{ref.Content})
			if err != nil {
				return errs.New(errs.UpstreamTransient, fmt.Errorf("embed reference %s: %w", ref.ID, err))
			}
			vec = embedded[0]
		}
		payload, err := qdrant.TryValueMap(map[string]any{
			"title":   ref.Title,
			"url":     ref.URL,
			"content": ref.Content,
		})
		if err != nil {
			return errs.New(errs.InternalInvariant, err)
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(ref.ID),
			Vectors: qdrant.NewVectors(vec...),
			Payload: payload,
		})
	}
	_, err := c.cli.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.collection,
		Points:         points,
	})
	if err != nil {
		return errs.New(errs.UpstreamTransient, fmt.Errorf("upsert %d points: %w", len(points), err))
	}
	return nil
}

// Search implements interfaces.SearchClient against the federated
// index.
func (c *QdrantClient) Search(ctx context.Context, q interfaces.SearchQuery) (*interfaces.SearchResponse, error) {
	if c.embed == nil {
		return nil, errs.New(errs.ConfigError, fmt.Errorf("qdrant client has no embedder configured"))
	}
	vec, err := c.embed.Embed(ctx, []string{q.Text})
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, err)
	}

	queryPoints := &qdrant.QueryPoints{
		CollectionName: c.collection,
		Query:          qdrant.NewQuery(vec[0]...),
		Limit:          u64ptr(uint64(q.TopK)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if q.RerankerThreshold > 0 {
		threshold := float32(q.RerankerThreshold)
		queryPoints.ScoreThreshold = &threshold
	}

	scored, err := c.cli.Query(ctx, queryPoints)
	if err != nil {
		return nil, errs.New(errs.UpstreamTransient, fmt.Errorf("query collection %s: %w", c.collection, err))
	}

	refs := make([]types.Reference, 0, len(scored))
	for _, point := range scored {
		payload := point.GetPayload()
		refs = append(refs, types.Reference{
			ID:      point.GetId().GetUuid(),
			Title:   payload["title"].GetStringValue(),
			URL:     payload["url"].GetStringValue(),
			Content: payload["content"].GetStringValue(),
			Score:   float64(point.GetScore()),
		})
	}

	coverage := 0.0
	if q.TopK > 0 {
		coverage = float64(len(refs)) / float64(q.TopK)
		if coverage > 1 {
			coverage = 1
		}
	}
	return &interfaces.SearchResponse{Values: refs, Coverage: coverage}, nil
}

func u64ptr(v uint64) *uint64 { return &v }
