package provider

import "fmt"

const OllamaDefaultURL = "http://localhost:11434"

// OllamaProvider is a locally-hosted Ollama server, speaking its
// native chat/embed API rather than an OpenAI-compatible shim.
type OllamaProvider struct{}

func init() { Register(&OllamaProvider{}) }

func (p *OllamaProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:        ProviderOllama,
		DisplayName: "Ollama (local)",
		DefaultURLs: map[ModelType]string{
			ModelTypeChat:      OllamaDefaultURL,
			ModelTypeEmbedding: OllamaDefaultURL,
		},
		ModelTypes:   []ModelType{ModelTypeChat, ModelTypeEmbedding},
		RequiresAuth: false,
	}
}

func (p *OllamaProvider) ValidateConfig(cfg *Config) error {
	if cfg.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
