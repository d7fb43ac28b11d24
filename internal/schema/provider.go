package schema

import "context"

// ProviderCall is the fully resolved request a Provider executes: the agent's
// system prompt, the model to use and the mode-specific extra arguments are
// already filled in by the router.
type ProviderCall struct {
	AgentID      string
	SystemPrompt string
	Prompt       string
	Model        string
	Mode         Mode
	WorkingDir   string
	Args         []string
}

// Provider is the interface every AI backend must satisfy.
type Provider interface {
	Name() string
	Call(ctx context.Context, call ProviderCall) (string, error)
}
