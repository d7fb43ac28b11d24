package agent

import "github.com/sowonlabs/crewx/internal/schema"

// Built-in provider names. CLI-backed providers shell out to the vendor tool;
// the api/ ones call the vendor HTTP API through its SDK.
const (
	ProviderClaude    = "cli/claude"
	ProviderGemini    = "cli/gemini"
	ProviderCopilot   = "cli/copilot"
	ProviderCodex     = "cli/codex"
	ProviderAnthropic = "api/anthropic"
	ProviderOpenAI    = "api/openai"
)

// Options holds extra command-line arguments per mode.
type Options struct {
	Query   []string `yaml:"query,omitempty" json:"query,omitempty"`
	Execute []string `yaml:"execute,omitempty" json:"execute,omitempty"`
}

// For returns the arguments configured for mode.
func (o Options) For(mode schema.Mode) []string {
	if mode == schema.ModeExecute {
		return o.Execute
	}
	return o.Query
}

// AgentConfig describes one addressable agent.
type AgentConfig struct {
	ID               string  `yaml:"id" json:"id"`
	Name             string  `yaml:"name,omitempty" json:"name,omitempty"`
	Description      string  `yaml:"description,omitempty" json:"description,omitempty"`
	Provider         string  `yaml:"provider" json:"provider"`
	Model            string  `yaml:"model,omitempty" json:"model,omitempty"`
	SystemPrompt     string  `yaml:"system_prompt,omitempty" json:"systemPrompt,omitempty"`
	WorkingDirectory string  `yaml:"working_directory,omitempty" json:"workingDirectory,omitempty"`
	Options          Options `yaml:"options,omitempty" json:"options,omitempty"`
}

// DisplayName returns Name, defaulting to the id.
func (a AgentConfig) DisplayName() string {
	if a.Name != "" {
		return a.Name
	}
	return a.ID
}

// DefaultAgents returns the built-in agents, one per supported CLI.
func DefaultAgents() []AgentConfig {
	return []AgentConfig{
		{
			ID:          "claude",
			Name:        "Claude",
			Description: "Anthropic Claude Code CLI",
			Provider:    ProviderClaude,
		},
		{
			ID:          "gemini",
			Name:        "Gemini",
			Description: "Google Gemini CLI",
			Provider:    ProviderGemini,
		},
		{
			ID:          "copilot",
			Name:        "Copilot",
			Description: "GitHub Copilot CLI",
			Provider:    ProviderCopilot,
		},
		{
			ID:          "codex",
			Name:        "Codex",
			Description: "OpenAI Codex CLI",
			Provider:    ProviderCodex,
		},
	}
}
