// Package provider holds the small registry of LLM backends the
// orchestrator can be pointed at: a name-keyed registry of
// ProviderInfo plus config validation, pared to the four backends
// this system actually exercises (OpenAI, an OpenAI-compatible
// generic endpoint, DeepSeek, and a local Ollama server). A longer list of vendor-specific
// backends (Aliyun, Zhipu, Hunyuan, MiniMax, Mimo, SiliconFlow,
// Volcengine, Gemini, Jina, OpenRouter) was considered and dropped
// since they serve vendor accounts this repo has no use for (see
// DESIGN.md).
package provider

import "sync"

// ProviderName identifies a registered backend.
type ProviderName string

const (
	ProviderOpenAI   ProviderName = "openai"
	ProviderGeneric  ProviderName = "generic"
	ProviderDeepSeek ProviderName = "deepseek"
	ProviderOllama   ProviderName = "ollama"
)

// ModelType is the capability a provider exposes a model for.
type ModelType string

const (
	ModelTypeChat      ModelType = "chat"
	ModelTypeEmbedding ModelType = "embedding"
)

// Config is what a caller supplies to validate and address a backend.
type Config struct {
	APIKey    string
	BaseURL   string
	ModelName string
}

// ProviderInfo is the static metadata a registered Provider reports.
type ProviderInfo struct {
	Name         ProviderName
	DisplayName  string
	DefaultURLs  map[ModelType]string
	ModelTypes   []ModelType
	RequiresAuth bool
}

// GetDefaultURL returns the provider's default base URL for mt, or ""
// if it doesn't serve that model type.
func (i ProviderInfo) GetDefaultURL(mt ModelType) string {
	return i.DefaultURLs[mt]
}

// Provider is one registered backend.
type Provider interface {
	Info() ProviderInfo
	ValidateConfig(cfg *Config) error
}

var (
	mu        sync.RWMutex
	providers = map[ProviderName]Provider{}
)

// Register adds p to the registry, keyed by its own Info().Name.
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	providers[p.Info().Name] = p
}

// Get looks up a provider by name.
func Get(name ProviderName) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := providers[name]
	return p, ok
}

// GetOrDefault looks up a provider by name, falling back to the
// generic OpenAI-compatible provider when name is unregistered.
func GetOrDefault(name ProviderName) Provider {
	if p, ok := Get(name); ok {
		return p
	}
	p, _ := Get(ProviderGeneric)
	return p
}

// List returns every registered provider.
func List() []Provider {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]Provider, 0, len(providers))
	for _, p := range providers {
		out = append(out, p)
	}
	return out
}

// ListByModelType returns the ProviderInfo of every provider that
// serves mt.
func ListByModelType(mt ModelType) []ProviderInfo {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]ProviderInfo, 0, len(providers))
	for _, p := range providers {
		info := p.Info()
		for _, t := range info.ModelTypes {
			if t == mt {
				out = append(out, info)
				break
			}
		}
	}
	return out
}

// DetectProvider guesses the provider from a base URL by sniffing the
// host for the backends this repo keeps.
func DetectProvider(baseURL string) ProviderName {
	switch {
	case contains(baseURL, "api.openai.com"):
		return ProviderOpenAI
	case contains(baseURL, "api.deepseek.com"):
		return ProviderDeepSeek
	case contains(baseURL, "localhost:11434"), contains(baseURL, "127.0.0.1:11434"):
		return ProviderOllama
	default:
		return ProviderGeneric
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
