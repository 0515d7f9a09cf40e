package provider

import "fmt"

const DeepSeekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekProvider is the hosted DeepSeek backend, kept because its
// reasoning-model family is a realistic alternative chat provider for
// the planner/critic stages without adding a new client shape (still
// OpenAI wire-compatible).
type DeepSeekProvider struct{}

func init() { Register(&DeepSeekProvider{}) }

func (p *DeepSeekProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:        ProviderDeepSeek,
		DisplayName: "DeepSeek",
		DefaultURLs: map[ModelType]string{
			ModelTypeChat: DeepSeekBaseURL,
		},
		ModelTypes:   []ModelType{ModelTypeChat},
		RequiresAuth: true,
	}
}

func (p *DeepSeekProvider) ValidateConfig(cfg *Config) error {
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required for DeepSeek provider")
	}
	if cfg.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
