package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/sowonlabs/crewx/internal/agent"
	cfgagent "github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

// Crew is what the tools need from the agent layer.
type Crew interface {
	Run(ctx context.Context, req agent.RunRequest) (agent.Report, error)
	Ask(ctx context.Context, mode schema.Mode, req schema.QueryRequest) (schema.QueryResult, error)
}

// Services holds the dependencies shared by all tools.
type Services struct {
	Crew   Crew
	Agents []cfgagent.AgentConfig
}

// RegisterTools registers every crewx tool on s.
func RegisterTools(s *Server, svc *Services) {
	s.RegisterTool(&listAgentsTool{svc: svc})
	s.RegisterTool(&askAgentTool{svc: svc, mode: schema.ModeQuery})
	s.RegisterTool(&askAgentTool{svc: svc, mode: schema.ModeExecute})
	s.RegisterTool(&runTool{svc: svc})
}

// inputSchema reflects T into an inline JSON schema. Fields without
// omitempty are required.
func inputSchema[T any]() json.RawMessage {
	r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(new(T))
	s.Version = ""
	s.ID = ""
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("reflect input schema: %v", err))
	}
	return data
}

func decodeArgs(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

type listAgentsArgs struct{}

type listAgentsTool struct{ svc *Services }

func (t *listAgentsTool) Name() string { return "crewx_listAgents" }

func (t *listAgentsTool) Description() string {
	return "List the agents crewx can address, with their provider and default model."
}

func (t *listAgentsTool) InputSchema() json.RawMessage { return inputSchema[listAgentsArgs]() }

func (t *listAgentsTool) Execute(_ context.Context, _ json.RawMessage) (string, error) {
	type entry struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
		Provider    string `json:"provider"`
		Model       string `json:"model,omitempty"`
	}
	out := make([]entry, len(t.svc.Agents))
	for i, a := range t.svc.Agents {
		out[i] = entry{ID: a.ID, Name: a.DisplayName(), Description: a.Description, Provider: a.Provider, Model: a.Model}
	}
	data, err := json.MarshalIndent(map[string]any{"agents": out}, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type askAgentArgs struct {
	AgentID string `json:"agentId" jsonschema:"description=Id of the agent to invoke, e.g. claude"`
	Query   string `json:"query" jsonschema:"description=Task or question for the agent"`
	Context string `json:"context,omitempty" jsonschema:"description=Extra context placed before the task"`
	Model   string `json:"model,omitempty" jsonschema:"description=Model override for this call"`
}

// askAgentTool serves crewx_queryAgent and crewx_executeAgent.
type askAgentTool struct {
	svc  *Services
	mode schema.Mode
}

func (t *askAgentTool) Name() string {
	if t.mode == schema.ModeExecute {
		return "crewx_executeAgent"
	}
	return "crewx_queryAgent"
}

func (t *askAgentTool) Description() string {
	if t.mode == schema.ModeExecute {
		return "Ask one agent to carry out a task. The agent may modify files in its working directory."
	}
	return "Ask one agent a read-only question. The agent must not modify files."
}

func (t *askAgentTool) InputSchema() json.RawMessage { return inputSchema[askAgentArgs]() }

func (t *askAgentTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	var args askAgentArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	if args.AgentID == "" || strings.TrimSpace(args.Query) == "" {
		return "", fmt.Errorf("agentId and query are required")
	}

	res, err := t.svc.Crew.Ask(ctx, t.mode, schema.QueryRequest{
		AgentID: strings.TrimPrefix(args.AgentID, "@"),
		Prompt:  args.Query,
		Context: args.Context,
		Model:   args.Model,
	})
	if err != nil {
		return "", err
	}
	if !res.Success {
		return "", fmt.Errorf("@%s failed: %s", res.AgentID, res.Error)
	}
	return res.Content, nil
}

type runArgs struct {
	Text    string `json:"text" jsonschema:"description=Free text starting with @agent mentions, e.g. @claude @gemini review this"`
	Mode    string `json:"mode,omitempty" jsonschema:"enum=query,enum=execute,description=Invocation mode (default query)"`
	Context string `json:"context,omitempty" jsonschema:"description=Extra context passed to every addressed agent"`
}

type runTool struct{ svc *Services }

func (t *runTool) Name() string { return "crewx_run" }

func (t *runTool) Description() string {
	return "Run free text with leading @agent mentions. Every mentioned agent works on the task in parallel."
}

func (t *runTool) InputSchema() json.RawMessage { return inputSchema[runArgs]() }

func (t *runTool) Execute(ctx context.Context, raw json.RawMessage) (string, error) {
	var args runArgs
	if err := decodeArgs(raw, &args); err != nil {
		return "", err
	}
	report, err := t.svc.Crew.Run(ctx, agent.RunRequest{
		Text:    args.Text,
		Mode:    schema.ParseMode(args.Mode),
		Context: args.Context,
	})
	if err != nil {
		return "", err
	}
	return report.Merge(), nil
}
