// Package types holds the shared data model for the session
// orchestrator: messages, references, plans, memories, telemetry
// events and the request/response envelopes of the external interface.
// Nothing in this package talks to a network or a database — it is
// pure data plus the small invariant-checking helpers that don't need
// an LLM or store to evaluate.
package types

import (
	"time"

	"github.com/google/uuid"
)

// Role is the speaker of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of conversation. Immutable once appended to a
// Session's history.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ReferenceSource distinguishes where a Reference's evidence came from.
type ReferenceSource string

const (
	SourceIndex ReferenceSource = "index"
	SourceWeb   ReferenceSource = "web"
)

// Reference is a citable piece of evidence produced by retrieval or web
// augmentation and consumed by synthesis and the critic. Every numeric
// citation `[n]` in an answer must resolve to a Reference in the same
// turn's reference set.
type Reference struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	URL        string          `json:"url,omitempty"`
	PageNumber int             `json:"page_number,omitempty"`
	Content    string          `json:"content"`
	Score      float64         `json:"score,omitempty"`
	Captions   []string        `json:"captions,omitempty"`
	Source     ReferenceSource `json:"source"`

	// Embedding is populated lazily for fusion/novelty scoring; it is
	// never serialized back to a transport client.
	Embedding []float32 `json:"-"`
	// FullyLoaded distinguishes a lazy-mode summary reference from one
	// whose full content has since been loaded on demand.
	FullyLoaded bool `json:"-"`
}

// WebResult is a single external web search hit with its quality scores
// prior to fusion with index references.
type WebResult struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Snippet   string    `json:"snippet"`
	Rank      int       `json:"rank"`
	FetchedAt time.Time `json:"fetched_at"`
	Scores    WebScores `json:"scores"`

	Embedding []float32 `json:"-"`
}

// WebScores holds the per-result quality signals computed by the web
// quality filter.
type WebScores struct {
	Authority float64 `json:"authority"`
	Relevance float64 `json:"relevance"`
	Novelty   float64 `json:"novelty"`
	Overall   float64 `json:"overall"`
}

// PlanStep is one of the dispatch actions a Plan can select.
type PlanStep string

const (
	StepVectorSearch PlanStep = "vector_search"
	StepWebSearch    PlanStep = "web_search"
)

// Plan is the planner's dispatch decision for a turn.
type Plan struct {
	Confidence float64    `json:"confidence"`
	Steps      []PlanStep `json:"steps"`
	Rationale  string     `json:"rationale"`
	// Escalated is set by the planner when a low-confidence plan is
	// forced to run both steps.
	Escalated bool `json:"escalated,omitempty"`
}

// HasStep reports whether step is present in the plan.
func (p Plan) HasStep(step PlanStep) bool {
	for _, s := range p.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// IntentLabel is the 4-class intent enum.
type IntentLabel string

const (
	IntentFAQ           IntentLabel = "faq"
	IntentResearch      IntentLabel = "research"
	IntentFactual       IntentLabel = "factual"
	IntentConversational IntentLabel = "conversational"
)

// RetrieverStrategy names how thoroughly the retrieval engine should
// search for a given route profile.
type RetrieverStrategy string

const (
	StrategyFast     RetrieverStrategy = "fast"
	StrategyThorough RetrieverStrategy = "thorough"
	StrategyDual     RetrieverStrategy = "dual"
)

// RouteProfile is the resolved routing decision attached to an Intent.
type RouteProfile struct {
	ModelHint         string            `json:"model_hint"`
	MaxTokens         int               `json:"max_tokens"`
	RetrieverStrategy RetrieverStrategy `json:"retriever_strategy"`
}

// Intent is the planner's classification of a user turn.
type Intent struct {
	Label      IntentLabel  `json:"intent"`
	Confidence float64      `json:"confidence"`
	Reasoning  string       `json:"reasoning"`
	Profile    RouteProfile `json:"-"`
}

// SubQuery is one node of a decomposed query's dependency DAG.
type SubQuery struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	DependsOn []string `json:"depends_on,omitempty"`
}

// DecomposedQuery is the planner's output when decomposition triggers.
type DecomposedQuery struct {
	SubQueries       []SubQuery `json:"sub_queries"`
	SynthesisPrompt  string     `json:"synthesis_prompt"`
}

// ComplexityAssessment is the planner's pre-decomposition check.
type ComplexityAssessment struct {
	Complexity        float64 `json:"complexity"`
	NeedsDecomposition bool   `json:"needs_decomposition"`
}

// SummaryBullet is one compacted fact extracted from older conversation
// turns.
type SummaryBullet struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"-"`
	Turn      int       `json:"turn"`
}

// SalienceNote is a durable fact carried across turns for long-context
// continuity, pruned by age.
type SalienceNote struct {
	Fact         string `json:"fact"`
	Topic        string `json:"topic,omitempty"`
	LastSeenTurn int    `json:"last_seen_turn"`
}

// LongTermMemoryType classifies a persisted long-term memory record.
type LongTermMemoryType string

const (
	MemoryEpisodic   LongTermMemoryType = "episodic"
	MemorySemantic   LongTermMemoryType = "semantic"
	MemoryProcedural LongTermMemoryType = "procedural"
	MemoryPreference LongTermMemoryType = "preference"
)

// LongTermMemory is a durable, embedding-indexed memory record.
// Invariant: Embedding's dimensionality must match the store's configured
// embedding family for the store instance's lifetime; the store refuses
// to Add a record, or to Recall with a query embedding, of any other
// dimension.
type LongTermMemory struct {
	ID             uuid.UUID           `json:"id"`
	SessionID      string              `json:"session_id"`
	UserID         string              `json:"user_id,omitempty"`
	Text           string              `json:"text"`
	Type           LongTermMemoryType  `json:"type"`
	Embedding      []float32           `json:"-"`
	Tags           []string            `json:"tags,omitempty"`
	UsageCount     int                 `json:"usage_count"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAccessedAt time.Time           `json:"last_accessed_at"`
}

// CriticAction is the bounded-revision-loop verdict.
type CriticAction string

const (
	CriticAccept CriticAction = "accept"
	CriticRevise CriticAction = "revise"
)

// CriticReport is the post-synthesis evaluator's verdict.
type CriticReport struct {
	Grounded bool         `json:"grounded"`
	Coverage float64      `json:"coverage"`
	Issues   []string     `json:"issues,omitempty"`
	Action   CriticAction `json:"action"`
}

// CRAGConfidence is the pre-synthesis retrieval grade.
type CRAGConfidence string

const (
	CRAGCorrect   CRAGConfidence = "correct"
	CRAGAmbiguous CRAGConfidence = "ambiguous"
	CRAGIncorrect CRAGConfidence = "incorrect"
)

// CRAGAction is the branch CRAG selects for its confidence grade.
type CRAGAction string

const (
	CRAGUse         CRAGAction = "use"
	CRAGRefine      CRAGAction = "refine"
	CRAGWebFallback CRAGAction = "web_fallback"
)

// CRAGEvaluation is CRAG's grade of a retrieval set.
type CRAGEvaluation struct {
	Confidence CRAGConfidence `json:"confidence"`
	Action     CRAGAction     `json:"action"`
	Reasoning  string         `json:"reasoning"`
}

// ActivityStepType names the kind of a logged Activity Step.
type ActivityStepType string

const (
	ActivityRetrieval    ActivityStepType = "retrieval"
	ActivityWebSearch    ActivityStepType = "web_search"
	ActivityReformulate  ActivityStepType = "reformulate"
	ActivityDecompose    ActivityStepType = "decompose"
	ActivityCRAG         ActivityStepType = "crag"
	ActivityCritic       ActivityStepType = "critic"
)

// ActivityStep is one ordered entry of the turn's activity log.
type ActivityStep struct {
	Type        ActivityStepType       `json:"type"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Usage is the token/cost accounting returned by the LLM client and
// carried through to the response envelope.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Mode selects synchronous vs. streaming delivery for a turn.
type Mode string

const (
	ModeSync   Mode = "sync"
	ModeStream Mode = "stream"
)

// FeatureOverrideValue is the dynamically-typed value a request may
// supply for a named feature flag. Exactly one field is set.
type FeatureOverrideValue struct {
	Bool *bool    `json:"-"`
	Num  *float64 `json:"-"`
	Text *string  `json:"-"`
}

// Request is the external entry point contract.
type Request struct {
	Messages         []Message                       `json:"messages"`
	SessionID        string                           `json:"session_id,omitempty"`
	Mode             Mode                             `json:"mode,omitempty"`
	FeatureOverrides map[string]FeatureOverrideValue  `json:"feature_overrides,omitempty"`
}

// Diagnostics carries stage-level diagnostic detail and the partial-
// failure flag through to the response envelope.
type Diagnostics struct {
	Retrieval       *RetrievalDiagnostics `json:"retrieval,omitempty"`
	WebFilter       *WebFilterDiagnostics `json:"web_filter,omitempty"`
	Reformulations  int                   `json:"reformulations,omitempty"`
	Decomposition   *DecompositionDiagnostics `json:"decomposition,omitempty"`
	Partial         bool                  `json:"partial,omitempty"`
	CriticUnresolved bool                 `json:"critic_unresolved,omitempty"`
}

// RetrievalDiagnostics is the per-call diagnostic block.
type RetrievalDiagnostics struct {
	Attempted      bool    `json:"attempted"`
	Succeeded      bool    `json:"succeeded"`
	Attempts       int     `json:"attempts"`
	MeanScore      float64 `json:"mean_score"`
	MinScore       float64 `json:"min_score"`
	MaxScore       float64 `json:"max_score"`
	ThresholdUsed  float64 `json:"threshold_used"`
	Coverage       float64 `json:"coverage,omitempty"`
	FallbackReason string  `json:"fallback_reason,omitempty"`
}

// WebFilterDiagnostics summarizes the quality-filter pass.
type WebFilterDiagnostics struct {
	Kept    int `json:"kept"`
	Removed int `json:"removed"`
}

// DecompositionDiagnostics summarizes a decomposition's execution.
type DecompositionDiagnostics struct {
	SubQueryCount      int `json:"sub_query_count"`
	ParallelExecuted   int `json:"parallel_executed"`
	SequentialExecuted int `json:"sequential_executed"`
}

// Response is the sync-mode external contract.
type Response struct {
	Answer      string         `json:"answer"`
	References  []Reference    `json:"references"`
	WebResults  []WebResult    `json:"web_results"`
	Activity    []ActivityStep `json:"activity"`
	Plan        Plan           `json:"plan"`
	Critic      []CriticReport `json:"critic,omitempty"`
	Route       *RouteInfo     `json:"route,omitempty"`
	Diagnostics Diagnostics    `json:"diagnostics"`
	Usage       Usage          `json:"usage"`
	SessionID   string         `json:"session_id"`
	Turn        int            `json:"turn"`
}

// RouteInfo is the resolved intent/profile surfaced in the response.
type RouteInfo struct {
	Intent     IntentLabel  `json:"intent"`
	Confidence float64      `json:"confidence"`
	Profile    RouteProfile `json:"profile"`
}

// StageLabel names a pipeline stage for the `status` streaming event.
type StageLabel string

const (
	StageContext       StageLabel = "context"
	StagePlan          StageLabel = "plan"
	StageRetrieving    StageLabel = "retrieving"
	StageWebSearching  StageLabel = "web_searching"
	StageReranking     StageLabel = "reranking"
	StageReformulating StageLabel = "reformulating"
	StageSynthesizing  StageLabel = "synthesizing"
	StageCritiquing    StageLabel = "critiquing"
	StagePersisting    StageLabel = "persisting"
)

// EventKind tags a streaming Event's payload.
type EventKind string

const (
	EventStatus     EventKind = "status"
	EventPlan       EventKind = "plan"
	EventRoute      EventKind = "route"
	EventContext    EventKind = "context"
	EventActivity   EventKind = "activity"
	EventCitations  EventKind = "citations"
	EventWebResults EventKind = "web_results"
	EventToken      EventKind = "token"
	EventUsage      EventKind = "usage"
	EventCritique   EventKind = "critique"
	EventTelemetry  EventKind = "telemetry"
	EventComplete   EventKind = "complete"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// Event is one tagged streaming message. Exactly one of the typed
// fields is populated, matching Kind.
type Event struct {
	Kind EventKind `json:"kind"`

	Stage      StageLabel     `json:"stage,omitempty"`
	Plan       *Plan          `json:"plan,omitempty"`
	Route      *RouteInfo     `json:"route,omitempty"`
	Context    *ContextEvent  `json:"context,omitempty"`
	Activity   *ActivityStep  `json:"activity,omitempty"`
	References []Reference    `json:"references,omitempty"`
	WebResults []WebResult    `json:"web_results,omitempty"`
	Token      string         `json:"token,omitempty"`
	Usage      *Usage         `json:"usage,omitempty"`
	Critique   *CriticReport  `json:"critique,omitempty"`
	Telemetry  map[string]int64 `json:"telemetry,omitempty"`
	Answer     string         `json:"answer,omitempty"`

	ErrorKind      string `json:"error_kind,omitempty"`
	ErrorMessage   string `json:"error_message,omitempty"`
	ErrorRetryable bool   `json:"error_retryable,omitempty"`
}

// ContextEvent carries the context pipeline's output for the `context`
// streaming event.
type ContextEvent struct {
	Summary        []SummaryBullet `json:"summary"`
	Salience       []SalienceNote  `json:"salience"`
	HistoryPreview []Message       `json:"history_preview"`
}
