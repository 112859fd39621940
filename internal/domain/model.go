package domain

// Provider identifiers for model descriptors. An empty provider asks the
// gateway to auto-detect from the model id.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderBedrock   = "bedrock"
	ProviderOllama    = "ollama"
)

// ModelConfig is an immutable model descriptor: which provider serves the
// model, how to authenticate, and the sampling parameters to use. Swapping
// models means constructing a new descriptor, never mutating one in place.
type ModelConfig struct {
	Provider    string  `json:"provider" yaml:"provider"`
	Model       string  `json:"model" yaml:"model"`
	APIKey      string  `json:"-" yaml:"api_key"`
	BaseURL     string  `json:"base_url,omitempty" yaml:"base_url"`
	Temperature float64 `json:"temperature,omitempty" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens,omitempty" yaml:"max_tokens"`
	TopP        float64 `json:"top_p,omitempty" yaml:"top_p"`
}

// WithModel returns a copy of the descriptor pointing at a different model id.
func (m ModelConfig) WithModel(model string) ModelConfig {
	m.Model = model
	return m
}

// Key returns a stable identity for the descriptor, used by gateways to
// cache resolved providers.
func (m ModelConfig) Key() string {
	return m.Provider + "/" + m.Model + "@" + m.BaseURL
}
