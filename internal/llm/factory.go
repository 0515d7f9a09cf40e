package llm

import (
	"fmt"
	"time"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/groundedqa/sentra/internal/llm/provider"
	"github.com/groundedqa/sentra/internal/types/interfaces"
)

// ClientConfig describes which backend to build: source + provider +
// per-model names, collapsed to the one LLMClient contract this system
// uses instead of a separate Embedder interface.
//
// BearerIssuer/BearerSecret configure an enterprise gateway that
// authenticates with a signed JWT instead of a static APIKey; when
// BearerSecret is set it takes precedence over APIKey for non-Ollama
// providers.
type ClientConfig struct {
	Provider      provider.ProviderName
	BaseURL       string
	APIKey        string
	ChatModel     string
	EmbedModel    string
	BearerIssuer  string
	BearerSecret  []byte
	BearerTTL     time.Duration
	BearerRefresh time.Duration
}

// NewClient resolves cfg to a concrete interfaces.LLMClient, routing
// by provider name to the backend-specific constructor.
func NewClient(cfg ClientConfig) (interfaces.LLMClient, error) {
	name := cfg.Provider
	if name == "" {
		name = provider.DetectProvider(cfg.BaseURL)
	}
	p := provider.GetOrDefault(name)
	if err := p.ValidateConfig(&provider.Config{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, ModelName: cfg.ChatModel}); err != nil {
		return nil, fmt.Errorf("invalid LLM client config for provider %s: %w", name, err)
	}

	switch name {
	case provider.ProviderOllama:
		oc, err := ollamaapi.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("ollama client: %w", err)
		}
		return NewOllamaClient(oc, cfg.ChatModel, cfg.EmbedModel), nil
	default:
		baseURL := cfg.BaseURL
		if baseURL == "" {
			if info := p.Info(); info.GetDefaultURL(provider.ModelTypeChat) != "" {
				baseURL = info.GetDefaultURL(provider.ModelTypeChat)
			}
		}
		if len(cfg.BearerSecret) > 0 {
			ttl := cfg.BearerTTL
			if ttl <= 0 {
				ttl = 5 * time.Minute
			}
			refresh := cfg.BearerRefresh
			if refresh <= 0 {
				refresh = 2 * time.Minute
			}
			signer := NewBearerSigner(cfg.BearerIssuer, cfg.BearerSecret, ttl, refresh)
			return NewOpenAICompatClientWithBearer(baseURL, cfg.ChatModel, cfg.EmbedModel, signer), nil
		}
		return NewOpenAICompatClient(baseURL, cfg.APIKey, cfg.ChatModel, cfg.EmbedModel), nil
	}
}
