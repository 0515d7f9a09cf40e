package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectProvider_matchesKnownHosts(t *testing.T) {
	assert.Equal(t, ProviderOpenAI, DetectProvider("https://api.openai.com/v1"))
	assert.Equal(t, ProviderDeepSeek, DetectProvider("https://api.deepseek.com/v1"))
	assert.Equal(t, ProviderOllama, DetectProvider("http://localhost:11434"))
	assert.Equal(t, ProviderOllama, DetectProvider("http://127.0.0.1:11434"))
}

func TestDetectProvider_unknownHostFallsBackToGeneric(t *testing.T) {
	assert.Equal(t, ProviderGeneric, DetectProvider("https://my-gateway.internal/v1"))
}

func TestGetOrDefault_unregisteredNameFallsBackToGeneric(t *testing.T) {
	p := GetOrDefault(ProviderName("does-not-exist"))
	assert.Equal(t, ProviderGeneric, p.Info().Name)
}

func TestGetOrDefault_registeredNameReturnsItself(t *testing.T) {
	p := GetOrDefault(ProviderOpenAI)
	assert.Equal(t, ProviderOpenAI, p.Info().Name)
}

func TestListByModelType_includesOnlyMatchingProviders(t *testing.T) {
	infos := ListByModelType(ModelTypeEmbedding)
	found := false
	for _, info := range infos {
		if info.Name == ProviderOpenAI {
			found = true
		}
	}
	assert.True(t, found, "openai should serve embeddings")
}

func TestGetDefaultURL_returnsEmptyForUnservedModelType(t *testing.T) {
	p, ok := Get(ProviderOllama)
	if !ok {
		t.Skip("ollama provider not registered")
	}
	info := p.Info()
	assert.Empty(t, info.GetDefaultURL(ModelType("not-a-real-type")))
}
