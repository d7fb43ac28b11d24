// Package schema holds the contracts shared across crewx packages.
// Concrete implementations live in their respective packages; keeping the
// types here avoids import cycles between agent, dispatch and providers.
package schema

import "context"

// Mode tags an invocation as read-only (query) or side-effecting (execute).
type Mode string

const (
	ModeQuery   Mode = "query"
	ModeExecute Mode = "execute"
)

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool { return m == ModeQuery || m == ModeExecute }

// ParseMode maps user input to a Mode, defaulting to query.
func ParseMode(s string) Mode {
	if Mode(s) == ModeExecute {
		return ModeExecute
	}
	return ModeQuery
}

// QueryRequest is one unit of work addressed to a single agent.
type QueryRequest struct {
	AgentID string `json:"agentId"`
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
	Model   string `json:"model,omitempty"` // empty = agent default
}

// QueryResult is the outcome of exactly one QueryRequest.
type QueryResult struct {
	AgentID string `json:"agentId"`
	Success bool   `json:"success"`
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

// Failed builds an unsuccessful result for agentID.
func Failed(agentID, reason string) QueryResult {
	return QueryResult{AgentID: agentID, Error: reason}
}

// InvokeRequest is what a provider adapter receives for one call.
type InvokeRequest struct {
	AgentID string
	Prompt  string
	Context string
	Model   string
	Mode    Mode
}

// AgentInvoker is the boundary to provider adapters (CLI- or API-backed).
// Implementations must honour ctx cancellation and must not retry on behalf
// of the caller.
type AgentInvoker interface {
	Invoke(ctx context.Context, req InvokeRequest) (string, error)
}

// AgentInvokerFunc adapts a function to AgentInvoker.
type AgentInvokerFunc func(ctx context.Context, req InvokeRequest) (string, error)

func (f AgentInvokerFunc) Invoke(ctx context.Context, req InvokeRequest) (string, error) {
	return f(ctx, req)
}
