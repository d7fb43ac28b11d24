package providers

import (
	"strings"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

// Kind separates providers that shell out to a vendor CLI from those that
// call a vendor API.
type Kind string

const (
	KindCLI Kind = "cli"
	KindAPI Kind = "api"
)

// ProviderSpec is the metadata record for one provider.
type ProviderSpec struct {
	// Identity
	Name        string // config value, e.g. "cli/claude"
	DisplayName string // shown by `crewx doctor`
	Kind        Kind

	// CLI invocation
	Binary      string   // executable looked up on PATH
	BaseArgs    []string // always passed first
	QueryArgs   []string // appended in query mode
	ExecuteArgs []string // appended in execute mode
	ModelFlag   string   // flag preceding the model name; empty = no model support
	PromptFlag  string   // flag preceding the prompt; empty = prompt on stdin

	// API credentials
	EnvKey string // env var holding the API key
}

// Label returns the display name, defaulting to the name.
func (s ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.Name
}

// ModeArgs returns the spec's arguments for mode.
func (s ProviderSpec) ModeArgs(mode schema.Mode) []string {
	if mode == schema.ModeExecute {
		return s.ExecuteArgs
	}
	return s.QueryArgs
}

// PROVIDERS is the registry of supported providers.
var PROVIDERS = []ProviderSpec{
	{
		Name:        agent.ProviderClaude,
		DisplayName: "Claude Code",
		Kind:        KindCLI,
		Binary:      "claude",
		BaseArgs:    []string{"--print"},
		ExecuteArgs: []string{"--permission-mode", "acceptEdits"},
		ModelFlag:   "--model",
	},
	{
		Name:        agent.ProviderGemini,
		DisplayName: "Gemini CLI",
		Kind:        KindCLI,
		Binary:      "gemini",
		ExecuteArgs: []string{"--yolo"},
		ModelFlag:   "--model",
	},
	{
		Name:        agent.ProviderCopilot,
		DisplayName: "GitHub Copilot CLI",
		Kind:        KindCLI,
		Binary:      "copilot",
		ExecuteArgs: []string{"--allow-all-tools"},
		ModelFlag:   "--model",
		PromptFlag:  "-p",
	},
	{
		Name:        agent.ProviderCodex,
		DisplayName: "Codex CLI",
		Kind:        KindCLI,
		Binary:      "codex",
		BaseArgs:    []string{"exec"},
		QueryArgs:   []string{"--sandbox", "read-only"},
		ExecuteArgs: []string{"--full-auto"},
		ModelFlag:   "--model",
	},
	{
		Name:        agent.ProviderAnthropic,
		DisplayName: "Anthropic API",
		Kind:        KindAPI,
		EnvKey:      "ANTHROPIC_API_KEY",
	},
	{
		Name:        agent.ProviderOpenAI,
		DisplayName: "OpenAI API",
		Kind:        KindAPI,
		EnvKey:      "OPENAI_API_KEY",
	},
}

// FindByName returns the spec with the given name, ignoring case.
func FindByName(name string) *ProviderSpec {
	for i := range PROVIDERS {
		if strings.EqualFold(PROVIDERS[i].Name, name) {
			return &PROVIDERS[i]
		}
	}
	return nil
}
