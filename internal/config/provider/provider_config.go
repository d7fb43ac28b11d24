package provider

// ProviderConfig holds credentials for one API-backed provider.
type ProviderConfig struct {
	APIKey       string            `yaml:"api_key,omitempty"`
	APIBase      string            `yaml:"api_base,omitempty"`
	DefaultModel string            `yaml:"default_model,omitempty"`
	MaxTokens    int               `yaml:"max_tokens,omitempty"`
	ExtraHeaders map[string]string `yaml:"extra_headers,omitempty"`
}

// ProvidersConfig holds credentials for the API-backed providers.
type ProvidersConfig struct {
	Anthropic ProviderConfig `yaml:"anthropic"`
	OpenAI    ProviderConfig `yaml:"openai"`
}

func DefaultProvidersConfig() ProvidersConfig {
	return ProvidersConfig{
		Anthropic: ProviderConfig{DefaultModel: "claude-sonnet-4-5", MaxTokens: 8192},
		OpenAI:    ProviderConfig{DefaultModel: "gpt-4o"},
	}
}
