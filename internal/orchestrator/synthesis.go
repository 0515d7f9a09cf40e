package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/groundedqa/sentra/internal/common"
	"github.com/groundedqa/sentra/internal/critic"
	"github.com/groundedqa/sentra/internal/ctxpipeline"
	"github.com/groundedqa/sentra/internal/telemetry"
	"github.com/groundedqa/sentra/internal/types"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

const insufficientEvidenceAnswer = "I do not have sufficient evidence to answer this question."

// buildContextPack assembles a pre-budgeted set of sections from the
// turn state.
func (o *Orchestrator) buildContextPack(st *turnState, revisionNotes []string) []interfaces.ChatMessage {
	caps := ctxpipeline.SectionCaps{
		History: 1500, Summary: 800, Salience: 400,
		References: st.features.ContextWindow - st.features.ReservedOutputTokens - 2700,
		WebContext: 1200,
	}
	if caps.References < 0 {
		caps.References = 500
	}
	budgeted := ctxpipeline.Budget(st.compact.RecentMessages, st.compact.Summary, st.salience, st.references, st.webResults, caps)

	system := "Answer the user's question using only the supplied evidence. Cite every factual claim with a numeric reference like [1] matching the evidence list. If the evidence is empty or insufficient, reply exactly: \"" + insufficientEvidenceAnswer + "\""

	msgs := []interfaces.ChatMessage{{Role: "system", Content: system}}
	for _, m := range budgeted.History {
		msgs = append(msgs, interfaces.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	var evidence string
	if len(budgeted.Summary) > 0 {
		evidence += "Conversation summary:\n"
		for _, s := range budgeted.Summary {
			evidence += "- " + s.Text + "\n"
		}
	}
	if len(budgeted.Salience) > 0 {
		evidence += "\nKnown facts:\n"
		for _, s := range budgeted.Salience {
			evidence += "- " + s.Fact + "\n"
		}
	}
	if len(budgeted.References) > 0 {
		evidence += "\nReferences:\n"
		for i, r := range budgeted.References {
			evidence += fmt.Sprintf("[%d] %s: %s\n", i+1, r.Title, r.Content)
		}
	}
	if len(budgeted.WebContext) > 0 {
		evidence += "\nWeb results:\n"
		for _, w := range budgeted.WebContext {
			evidence += "- " + w.Title + ": " + w.Snippet + "\n"
		}
	}
	if len(revisionNotes) > 0 {
		evidence += "\nRevision notes from the previous attempt (address these):\n"
		for _, n := range revisionNotes {
			evidence += "- " + n + "\n"
		}
	}
	if evidence != "" {
		msgs = append(msgs, interfaces.ChatMessage{Role: "system", Content: evidence})
	}
	msgs = append(msgs, interfaces.ChatMessage{Role: "user", Content: st.question})
	return msgs
}

// synthesize runs one LLM completion over the bounded context pack.
func (o *Orchestrator) synthesize(ctx context.Context, st *turnState, revisionNotes []string) (string, types.Usage, error) {
	if len(st.references) == 0 && len(st.webResults) == 0 {
		return insufficientEvidenceAnswer, types.Usage{}, nil
	}
	msgs := o.buildContextPack(st, revisionNotes)
	result, err := o.llm.Complete(ctx, msgs, interfaces.ChatOptions{
		Temperature: 0.2,
		MaxTokens:   st.intent.Profile.MaxTokens,
		Metadata:    map[string]string{"session_id": st.sessionID, "intent": string(st.intent.Label)},
	})
	if err != nil {
		return "", types.Usage{}, err
	}
	return result.Text, result.Usage, nil
}

// synthesizeAndRevise synthesizes, then runs the bounded critic
// revision loop when EnableCritic is set. tokenSink, when non-nil,
// receives each streamed token for the streaming path;
// sync callers pass nil and get Complete's full text back directly.
func (o *Orchestrator) synthesizeAndRevise(ctx context.Context, st *turnState, rec *telemetry.Recorder, tokenSink func(string)) (string, types.Usage, []types.CriticReport, bool, error) {
	emit := func(kind string, fields map[string]interface{}) {
		if rec != nil {
			rec.Emit(ctx, kind, fields)
		}
	}

	emit("status", map[string]interface{}{"stage": types.StageSynthesizing})
	answer, usage, err := o.synthesizeOrStream(ctx, st, nil, tokenSink)
	if err != nil {
		return "", types.Usage{}, nil, false, err
	}

	if !st.features.EnableCritic || answer == insufficientEvidenceAnswer {
		return answer, usage, nil, false, nil
	}

	emit("status", map[string]interface{}{"stage": types.StageCritiquing})
	finalAnswer, reports, unresolved, loopErr := critic.Loop(ctx, o.critic, st.question, st.references, st.webResults, st.features.MaxRevisions, func(ctx context.Context, notes []string) (string, error) {
		revised, _, synthErr := o.synthesizeOrStream(ctx, st, notes, tokenSink)
		return revised, synthErr
	}, answer)
	for _, r := range reports {
		emit("critique", map[string]interface{}{"grounded": r.Grounded, "coverage": r.Coverage, "action": r.Action})
	}
	if loopErr != nil {
		common.PipelineWarn(ctx, "orchestrator", "critic_loop_error", map[string]interface{}{"error": loopErr.Error()})
		return finalAnswer, usage, reports, true, nil
	}
	return finalAnswer, usage, reports, unresolved, nil
}

func (o *Orchestrator) synthesizeOrStream(ctx context.Context, st *turnState, revisionNotes []string, tokenSink func(string)) (string, types.Usage, error) {
	if tokenSink == nil {
		return o.synthesize(ctx, st, revisionNotes)
	}
	return o.synthesizeStream(ctx, st, revisionNotes, tokenSink)
}

// writeMemory appends a summary bullet and, when enabled, an episodic
// long-term memory keyed to the accepted answer.
func (o *Orchestrator) writeMemory(ctx context.Context, st *turnState, answer string) {
	bullet := types.SummaryBullet{Text: summarizeTurn(st.question, answer), Turn: st.turn}
	if err := o.memory.Append(ctx, st.sessionID, bullet, nil); err != nil {
		common.PipelineWarn(ctx, "orchestrator", "memory_write_failed", map[string]interface{}{"error": err.Error()})
	}

	if st.features.EnableSemanticMemory && o.longTerm != nil && answer != insufficientEvidenceAnswer {
		vecs, err := o.llm.Embed(ctx, []string{bullet.Text})
		if err != nil || len(vecs) != 1 {
			return
		}
		mem := &types.LongTermMemory{
			ID:        uuid.New(),
			SessionID: st.sessionID,
			Text:      bullet.Text,
			Type:      types.MemoryEpisodic,
			Embedding: vecs[0],
			CreatedAt: time.Now(),
		}
		if addErr := o.longTerm.Add(ctx, mem); addErr != nil {
			common.PipelineWarn(ctx, "orchestrator", "long_term_write_failed", map[string]interface{}{"error": addErr.Error()})
		}
	}
}

func summarizeTurn(question, answer string) string {
	const limit = 200
	text := "Q: " + question + " A: " + answer
	if len(text) > limit {
		return text[:limit]
	}
	return text
}
