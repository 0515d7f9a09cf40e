package provider

import "fmt"

// GenericProvider is any OpenAI-compatible endpoint the operator
// points us at directly, including a local Ollama-in-OpenAI-mode
// server that wasn't recognized by DetectProvider.
type GenericProvider struct{}

func init() { Register(&GenericProvider{}) }

func (p *GenericProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:         ProviderGeneric,
		DisplayName:  "Generic OpenAI-compatible",
		DefaultURLs:  map[ModelType]string{},
		ModelTypes:   []ModelType{ModelTypeChat, ModelTypeEmbedding},
		RequiresAuth: false,
	}
}

func (p *GenericProvider) ValidateConfig(cfg *Config) error {
	if cfg.BaseURL == "" {
		return fmt.Errorf("base URL is required for generic provider")
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
