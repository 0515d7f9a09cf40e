package ctxpipeline

import (
	"strings"

	"github.com/groundedqa/sentra/internal/types"
)

// SectionCaps is the per-section token budget.
type SectionCaps struct {
	History    int
	Summary    int
	Salience   int
	References int
	WebContext int
}

// BudgetedSections is Budget's output, whole items only: history,
// summary and salience keep their newest items that fit the cap;
// references and web context keep their leading items that fit, and
// always keep the first item even when it alone exceeds the cap.
type BudgetedSections struct {
	History    []types.Message
	Summary    []types.SummaryBullet
	Salience   []types.SalienceNote
	References []types.Reference
	WebContext []types.WebResult
}

// EstimateTokens is a conservative whitespace+subword heuristic: no
// tokenizer library appears anywhere in the retrieved example pack, so
// this repo approximates length/4 (roughly 4 characters per token for
// English text) rather than reaching for a stdlib-only byte count,
// which would badly overcount for any non-trivial prompt.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	words := len(strings.Fields(s))
	chars := len(s)
	bySubword := chars / 4
	if words > bySubword {
		return words
	}
	return bySubword
}

// Budget trims each section to its cap: history, summary and salience
// drop their oldest items first; references and web context drop items
// from the tail, keeping at least one. A single reference's content is
// never truncated mid-citation.
func Budget(history []types.Message, summary []types.SummaryBullet, salience []types.SalienceNote, references []types.Reference, webContext []types.WebResult, caps SectionCaps) BudgetedSections {
	return BudgetedSections{
		History:    trimHistory(history, caps.History),
		Summary:    trimSummary(summary, caps.Summary),
		Salience:   trimSalience(salience, caps.Salience),
		References: trimReferences(references, caps.References),
		WebContext: trimWebContext(webContext, caps.WebContext),
	}
}

func trimHistory(messages []types.Message, cap int) []types.Message {
	total := 0
	start := len(messages)
	for i := len(messages) - 1; i >= 0; i-- {
		total += EstimateTokens(messages[i].Content)
		if total > cap {
			break
		}
		start = i
	}
	return messages[start:]
}

func trimSummary(bullets []types.SummaryBullet, cap int) []types.SummaryBullet {
	total := 0
	start := len(bullets)
	for i := len(bullets) - 1; i >= 0; i-- {
		total += EstimateTokens(bullets[i].Text)
		if total > cap {
			break
		}
		start = i
	}
	return bullets[start:]
}

func trimSalience(notes []types.SalienceNote, cap int) []types.SalienceNote {
	total := 0
	start := len(notes)
	for i := len(notes) - 1; i >= 0; i-- {
		total += EstimateTokens(notes[i].Fact)
		if total > cap {
			break
		}
		start = i
	}
	return notes[start:]
}

func trimReferences(refs []types.Reference, cap int) []types.Reference {
	total := 0
	out := make([]types.Reference, 0, len(refs))
	for _, r := range refs {
		t := EstimateTokens(r.Content)
		if total+t > cap && len(out) > 0 {
			break
		}
		out = append(out, r)
		total += t
	}
	return out
}

func trimWebContext(results []types.WebResult, cap int) []types.WebResult {
	total := 0
	out := make([]types.WebResult, 0, len(results))
	for _, r := range results {
		t := EstimateTokens(r.Snippet)
		if total+t > cap && len(out) > 0 {
			break
		}
		out = append(out, r)
		total += t
	}
	return out
}

// TotalTokens sums the estimated tokens across every budgeted section.
func (b BudgetedSections) TotalTokens() int {
	total := 0
	for _, m := range b.History {
		total += EstimateTokens(m.Content)
	}
	for _, s := range b.Summary {
		total += EstimateTokens(s.Text)
	}
	for _, s := range b.Salience {
		total += EstimateTokens(s.Fact)
	}
	for _, r := range b.References {
		total += EstimateTokens(r.Content)
	}
	for _, w := range b.WebContext {
		total += EstimateTokens(w.Snippet)
	}
	return total
}
