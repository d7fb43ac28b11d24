// Package providers connects agent ids to the backends that answer them:
// vendor CLIs run as subprocesses and vendor APIs called through their SDKs.
package providers

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

// Router resolves an agent id to its configuration and provider. It is the
// AgentInvoker used by agent sessions and the agent directory used by the
// crew.
type Router struct {
	order     []string
	agents    map[string]agent.AgentConfig
	providers map[string]schema.Provider // by provider name
}

// NewRouter creates a router. providers is keyed by provider name.
func NewRouter(agents []agent.AgentConfig, providers map[string]schema.Provider) *Router {
	r := &Router{
		agents:    make(map[string]agent.AgentConfig, len(agents)),
		providers: providers,
	}
	for _, a := range agents {
		if _, dup := r.agents[a.ID]; !dup {
			r.order = append(r.order, a.ID)
		}
		r.agents[a.ID] = a
	}
	return r
}

// AgentIDs returns every agent id in configuration order.
func (r *Router) AgentIDs() []string { return slices.Clone(r.order) }

func (r *Router) Has(agentID string) bool {
	_, ok := r.agents[agentID]
	return ok
}

// Agent returns the configuration of agentID.
func (r *Router) Agent(agentID string) (agent.AgentConfig, bool) {
	a, ok := r.agents[agentID]
	return a, ok
}

// Provider returns the provider serving agentID.
func (r *Router) Provider(agentID string) (schema.Provider, bool) {
	a, ok := r.agents[agentID]
	if !ok {
		return nil, false
	}
	p, ok := r.providers[a.Provider]
	return p, ok
}

// Invoke implements schema.AgentInvoker.
func (r *Router) Invoke(ctx context.Context, req schema.InvokeRequest) (string, error) {
	a, ok := r.agents[req.AgentID]
	if !ok {
		return "", fmt.Errorf("unknown agent @%s", req.AgentID)
	}
	p, ok := r.providers[a.Provider]
	if !ok {
		return "", fmt.Errorf("agent @%s: provider %q is not available", a.ID, a.Provider)
	}

	model := req.Model
	if model == "" {
		model = a.Model
	}

	slog.Debug("Routing agent call", "agent", a.ID, "provider", p.Name(), "model", model, "mode", req.Mode)
	return p.Call(ctx, schema.ProviderCall{
		AgentID:      a.ID,
		SystemPrompt: a.SystemPrompt,
		Prompt:       BuildPrompt(req.Context, req.Prompt),
		Model:        model,
		Mode:         req.Mode,
		WorkingDir:   a.WorkingDirectory,
		Args:         a.Options.For(req.Mode),
	})
}

// BuildPrompt places the context ahead of the task when there is one.
func BuildPrompt(contextText, task string) string {
	contextText = strings.TrimSpace(contextText)
	if contextText == "" {
		return task
	}
	var b strings.Builder
	b.WriteString("<context>\n")
	b.WriteString(contextText)
	b.WriteString("\n</context>\n\n")
	b.WriteString(task)
	return b.String()
}
