package provider

import "fmt"

const OpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider is the hosted OpenAI backend.
type OpenAIProvider struct{}

func init() { Register(&OpenAIProvider{}) }

func (p *OpenAIProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:        ProviderOpenAI,
		DisplayName: "OpenAI",
		DefaultURLs: map[ModelType]string{
			ModelTypeChat:      OpenAIBaseURL,
			ModelTypeEmbedding: OpenAIBaseURL,
		},
		ModelTypes:   []ModelType{ModelTypeChat, ModelTypeEmbedding},
		RequiresAuth: true,
	}
}

func (p *OpenAIProvider) ValidateConfig(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required for OpenAI provider")
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
