// Package ctxpipeline handles history compaction into summary bullets
// plus salience notes, embedding-ranked summary selection, and
// per-section token budgeting: rather than loading raw conversation
// history verbatim, older turns are compacted into structured bullets
// while the most recent window is kept verbatim.
package ctxpipeline

import (
	"context"
	"math"
	"sort"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
	"github.com/groundedqa/sentra/internal/utils"
)

// CompactResult is Compact's output.
type CompactResult struct {
	RecentMessages []types.Message
	Summary        []types.SummaryBullet
	Salience       []types.SalienceNote
}

// Pipeline runs the context-preparation stages ahead of planning.
type Pipeline struct {
	llm        interfaces.LLMClient
	recentTurn int
}

// NewPipeline builds a Pipeline that keeps the last recentTurns turns
// verbatim and compacts everything older.
func NewPipeline(llm interfaces.LLMClient, recentTurns int) *Pipeline {
	if recentTurns <= 0 {
		recentTurns = 4
	}
	return &Pipeline{llm: llm, recentTurn: recentTurns}
}

type compactionSchema struct {
	Summary  []string `json:"summary"`
	Salience []struct {
		Fact  string `json:"fact"`
		Topic string `json:"topic"`
	} `json:"salience"`
}

// Compact keeps the last recentTurns user/assistant pairs verbatim;
// everything older is summarized into bullets and durable salience
// facts via CompleteStructured.
func (p *Pipeline) Compact(ctx context.Context, messages []types.Message, turn int) (*CompactResult, error) {
	recentCount := p.recentTurn * 2
	if recentCount > len(messages) {
		recentCount = len(messages)
	}
	older := messages[:len(messages)-recentCount]
	recent := messages[len(messages)-recentCount:]

	if len(older) == 0 {
		common.PipelineInfo(ctx, "context", "compact", map[string]interface{}{"older_count": 0, "recent_count": len(recent)})
		return &CompactResult{RecentMessages: recent}, nil
	}

	var out compactionSchema
	msgs := []interfaces.ChatMessage{
		{Role: "system", Content: "Summarize the older conversation turns into short factual bullets, and extract durable facts worth remembering across turns (salience). Respond with JSON only."},
		{Role: "user", Content: renderTranscript(older)},
	}
	schema := compactionJSONSchema()
	if err := p.llm.CompleteStructured(ctx, msgs, schema, &out, interfaces.ChatOptions{Temperature: 0.1}); err != nil {
		common.PipelineWarn(ctx, "context", "compact_failed", map[string]interface{}{"error": err.Error()})
		return &CompactResult{RecentMessages: recent}, nil
	}

	summary := make([]types.SummaryBullet, 0, len(out.Summary))
	for _, s := range out.Summary {
		summary = append(summary, types.SummaryBullet{Text: s, Turn: turn})
	}
	salience := make([]types.SalienceNote, 0, len(out.Salience))
	for _, s := range out.Salience {
		salience = append(salience, types.SalienceNote{Fact: s.Fact, Topic: s.Topic, LastSeenTurn: turn})
	}

	common.PipelineInfo(ctx, "context", "compact", map[string]interface{}{
		"older_count": len(older), "recent_count": len(recent),
		"summary_bullets": len(summary), "salience_notes": len(salience),
	})

	return &CompactResult{RecentMessages: recent, Summary: summary, Salience: salience}, nil
}

func renderTranscript(messages []types.Message) string {
	out := ""
	for _, m := range messages {
		out += string(m.Role) + ": " + m.Content + "\n"
	}
	return out
}

func compactionJSONSchema() []byte {
	return utils.GenerateSchema[compactionSchema]()
}

// SelectSummaries ranks summaries by embedding similarity, falling
// back to recency when no bullet yet carries an embedding.
func SelectSummaries(query []float32, bullets []types.SummaryBullet, k int) []types.SummaryBullet {
	if k <= 0 || k >= len(bullets) {
		return bullets
	}
	haveEmbeddings := false
	for _, b := range bullets {
		if len(b.Embedding) > 0 {
			haveEmbeddings = true
			break
		}
	}
	ranked := make([]types.SummaryBullet, len(bullets))
	copy(ranked, bullets)
	if haveEmbeddings && len(query) > 0 {
		sort.SliceStable(ranked, func(i, j int) bool {
			return cosine(query, ranked[i].Embedding) > cosine(query, ranked[j].Embedding)
		})
	} else {
		sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Turn > ranked[j].Turn })
	}
	return ranked[:k]
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
