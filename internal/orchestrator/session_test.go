package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/groundedqa/sentra/internal/types"
)

func TestDeriveSessionID_sameOpeningExchangeMapsToSameID(t *testing.T) {
	a := []types.Message{
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi there"},
		{Role: types.RoleUser, Content: "a third message that differs"},
	}
	b := []types.Message{
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi there"},
		{Role: types.RoleUser, Content: "an entirely different third message"},
	}

	assert.Equal(t, DeriveSessionID(a), DeriveSessionID(b))
}

func TestDeriveSessionID_differentOpeningExchangeMapsToDifferentID(t *testing.T) {
	a := []types.Message{
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi there"},
	}
	b := []types.Message{
		{Role: types.RoleUser, Content: "goodbye"},
		{Role: types.RoleAssistant, Content: "farewell"},
	}

	assert.NotEqual(t, DeriveSessionID(a), DeriveSessionID(b))
}

func TestDeriveSessionID_skipsSystemMessages(t *testing.T) {
	withSystem := []types.Message{
		{Role: types.RoleSystem, Content: "you are a helpful assistant"},
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi there"},
	}
	withoutSystem := []types.Message{
		{Role: types.RoleUser, Content: "hello"},
		{Role: types.RoleAssistant, Content: "hi there"},
	}

	assert.Equal(t, DeriveSessionID(withSystem), DeriveSessionID(withoutSystem))
}

func TestDeriveSessionID_is32HexChars(t *testing.T) {
	id := DeriveSessionID([]types.Message{{Role: types.RoleUser, Content: "hi"}})
	assert.Len(t, id, 32)
}
