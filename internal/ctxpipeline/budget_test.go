package ctxpipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundedqa/sentra/internal/types"
)

func TestEstimateTokens_empty(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
}

func TestEstimateTokens_prefersLargerHeuristic(t *testing.T) {
	// Many short words: word count should dominate over chars/4.
	text := strings.Repeat("a ", 50)
	assert.Equal(t, 50, EstimateTokens(text))
}

func TestTrimHistory_keepsMostRecentWithinCap(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: strings.Repeat("x", 40)},
		{Role: types.RoleAssistant, Content: strings.Repeat("y", 40)},
		{Role: types.RoleUser, Content: "short"},
	}
	trimmed := trimHistory(messages, 15)
	assert.Equal(t, messages[1:], trimmed)
}

func TestTrimReferences_alwaysKeepsAtLeastOne(t *testing.T) {
	refs := []types.Reference{{ID: "1", Content: strings.Repeat("z", 400)}}
	trimmed := trimReferences(refs, 1)
	assert.Len(t, trimmed, 1)
}

func TestTrimReferences_stopsOnceOverCap(t *testing.T) {
	refs := []types.Reference{
		{ID: "1", Content: "short"},
		{ID: "2", Content: strings.Repeat("z", 400)},
		{ID: "3", Content: "also short"},
	}
	trimmed := trimReferences(refs, 10)
	assert.Len(t, trimmed, 1)
}

func TestBudgetedSections_TotalTokens(t *testing.T) {
	b := Budget(
		[]types.Message{{Role: types.RoleUser, Content: "hello there"}},
		[]types.SummaryBullet{{Text: "a bullet"}},
		nil, nil, nil,
		SectionCaps{History: 100, Summary: 100, Salience: 100, References: 100, WebContext: 100},
	)
	assert.Positive(t, b.TotalTokens())
}
