package providers

import (
	"fmt"

	"github.com/sowonlabs/crewx/internal/config"
	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/config/provider"
	"github.com/sowonlabs/crewx/internal/schema"
)

// New creates the schema.Provider registered under name.
//
//   - cli/*          → CLIProvider running the vendor binary
//   - api/anthropic  → AnthropicProvider
//   - api/openai     → OpenAIProvider
func New(name string, cfg provider.ProvidersConfig) (schema.Provider, error) {
	spec := FindByName(name)
	if spec == nil {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	switch {
	case spec.Kind == KindCLI:
		return NewCLIProvider(*spec), nil
	case spec.Name == agent.ProviderAnthropic:
		return NewAnthropicProvider(cfg.Anthropic), nil
	case spec.Name == agent.ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAI), nil
	}
	return nil, fmt.Errorf("provider %q has no implementation", name)
}

// FromConfig builds one provider per distinct provider name the configured
// agents use, and a router over them.
func FromConfig(cfg *config.Config) (*Router, error) {
	built := make(map[string]schema.Provider)
	for _, a := range cfg.Agents {
		if _, ok := built[a.Provider]; ok {
			continue
		}
		p, err := New(a.Provider, cfg.Providers)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", a.ID, err)
		}
		built[a.Provider] = p
	}
	return NewRouter(cfg.Agents, built), nil
}
