// Package interfaces collects the service contracts the orchestrator and
// its stages depend on: callers hold an interface, never a concrete
// client, so every external collaborator (LLM, search, memory,
// telemetry) is swappable behind DI without touching pipeline code.
package interfaces

import (
	"context"

	"github.com/groundedqa/sentra/internal/types"
)

// ChatMessage is a single LLM-facing chat message (role + content, plus
// tool-calling fields the chat backends round-trip).
type ChatMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Name      string           `json:"name,omitempty"`
	ToolCalls []types.Message  `json:"-"`
}

// ChatOptions controls a single LLM call.
type ChatOptions struct {
	Temperature      float64
	TopP             float64
	Seed             int
	MaxTokens        int
	FrequencyPenalty float64
	PresencePenalty  float64
	Metadata         map[string]string
	PreviousResponseID string
}

// StreamEventKind tags a completion stream chunk.
type StreamEventKind string

const (
	StreamToken StreamEventKind = "token"
	StreamUsage StreamEventKind = "usage"
	StreamDone  StreamEventKind = "done"
)

// StreamEvent is one chunk of a streaming completion.
type StreamEvent struct {
	Kind  StreamEventKind
	Token string
	Usage types.Usage
}

// CompletionResult is the non-streaming completion output.
type CompletionResult struct {
	Text       string
	Usage      types.Usage
	ResponseID string
}

// LLMClient is the completion and embedding contract: completions
// (sync/stream/structured) and embeddings.
type LLMClient interface {
	Complete(ctx context.Context, messages []ChatMessage, opts ChatOptions) (*CompletionResult, error)
	CompleteStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (<-chan StreamEvent, error)
	// CompleteStructured asks the model for JSON matching schema and
	// unmarshals it into out (a pointer). On a single parse failure it
	// retries once with a stricter reminder before returning SchemaError.
	CompleteStructured(ctx context.Context, messages []ChatMessage, schema []byte, out interface{}, opts ChatOptions) error
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// SearchQuery is the hybrid search query builder's assembled request.
type SearchQuery struct {
	Text                string
	TopK                int
	RerankerThreshold    float64
	Fields              []string
	Filter              string // OData-style filter expression
	SemanticConfig      string
	VectorFilterMode    VectorFilterMode
	VectorOnly          bool
}

// VectorFilterMode selects whether a restrictive filter is applied
// before or after the vector search stage.
type VectorFilterMode string

const (
	FilterModeAuto       VectorFilterMode = "auto"
	FilterModePreFilter  VectorFilterMode = "preFilter"
	FilterModePostFilter VectorFilterMode = "postFilter"
)

// SearchResponse is the raw hybrid search client response.
type SearchResponse struct {
	Values   []types.Reference
	Coverage float64
	Debug    SearchDebug
}

// SearchDebug carries vendor-provided debug annotations (captions,
// extractive answers) when available.
type SearchDebug struct {
	Captions []string
	Answers  []string
}

// SearchClient is the hybrid search contract.
type SearchClient interface {
	Search(ctx context.Context, q SearchQuery) (*SearchResponse, error)
}

// WebSearchClient is the web-augmentation contract's fetch half.
type WebSearchClient interface {
	WebSearch(ctx context.Context, query string, k int) ([]types.WebResult, error)
}

// MemoryStore is the short-term session memory contract.
type MemoryStore interface {
	Get(ctx context.Context, sessionID string) (summary []types.SummaryBullet, salience []types.SalienceNote, turn int, err error)
	Append(ctx context.Context, sessionID string, bullet types.SummaryBullet, notes []types.SalienceNote) error
	Prune(ctx context.Context, sessionID string, maxAgeTurns int) error
}

// LongTermMemoryStore is the optional durable memory contract,
// deliberately interface-shaped so Postgres/pgvector, SQLite, or an
// in-memory fake are interchangeable.
type LongTermMemoryStore interface {
	Add(ctx context.Context, mem *types.LongTermMemory) error
	Recall(ctx context.Context, sessionID, userID string, embedding []float32, minSimilarity float64, topK int, memType types.LongTermMemoryType, tags []string) ([]types.LongTermMemory, error)
	Prune(ctx context.Context, maxAgeDays int, minUsage int) (int64, error)
	Stats(ctx context.Context) (count int64, err error)
}

// TelemetrySink is the append-only event receiver + aggregate reader
// contract.
type TelemetrySink interface {
	Emit(ctx context.Context, event TelemetryRecord) error
	Aggregates(ctx context.Context) (map[string]int64, error)
}

// TelemetryRecord is one persisted telemetry event.
type TelemetryRecord struct {
	SessionID string
	Turn      int
	Timestamp int64
	Kind      string
	Fields    map[string]interface{}
}
