package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool       { return &b }
func floatPtr(f float64) *float64 { return &f }

func TestMerge_requestTakesPrecedenceOverPersisted(t *testing.T) {
	base := Defaults()
	persisted := map[string]Override{"EnableCritic": {Bool: boolPtr(false)}}
	request := map[string]Override{"EnableCritic": {Bool: boolPtr(true)}}

	out := Merge(base, persisted, request)
	assert.True(t, out.EnableCritic)
}

func TestMerge_persistedAppliesWhenRequestSilent(t *testing.T) {
	base := Defaults()
	persisted := map[string]Override{"DualThreshold": {Num: floatPtr(0.9)}}

	out := Merge(base, persisted, nil)
	assert.Equal(t, 0.9, out.DualThreshold)
}

func TestMerge_neverMutatesBase(t *testing.T) {
	base := Defaults()
	original := base.EnableCritic
	_ = Merge(base, map[string]Override{"EnableCritic": {Bool: boolPtr(!original)}}, nil)
	assert.Equal(t, original, base.EnableCritic)
}

func TestMerge_unsetLayersFallThroughToBase(t *testing.T) {
	base := Defaults()
	out := Merge(base, nil, nil)
	assert.Equal(t, base, out)
}

func TestMerge_overridesEveryNumericField(t *testing.T) {
	base := Defaults()
	request := map[string]Override{
		"DecompositionThreshold": {Num: floatPtr(0.8)},
		"RRFConstant":            {Num: floatPtr(30)},
		"MinSimilarity":          {Num: floatPtr(0.6)},
		"MaxAgeTurns":            {Num: floatPtr(10)},
		"MaxAgeDays":             {Num: floatPtr(14)},
		"MinUsage":               {Num: floatPtr(2)},
		"ContextWindow":          {Num: floatPtr(64_000)},
		"ReservedOutputTokens":   {Num: floatPtr(1024)},
		"RetryMaxAttempts":       {Num: floatPtr(5)},
	}

	out := Merge(base, nil, request)

	assert.Equal(t, 0.8, out.DecompositionThreshold)
	assert.Equal(t, 30.0, out.RRFConstant)
	assert.Equal(t, 0.6, out.MinSimilarity)
	assert.Equal(t, 10, out.MaxAgeTurns)
	assert.Equal(t, 14, out.MaxAgeDays)
	assert.Equal(t, 2, out.MinUsage)
	assert.Equal(t, 64_000, out.ContextWindow)
	assert.Equal(t, 1024, out.ReservedOutputTokens)
	assert.Equal(t, 5, out.RetryMaxAttempts)
}
