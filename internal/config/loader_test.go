package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/crewx.yaml")
	if err != nil {
		t.Fatalf("expected no error for missing file, got: %v", err)
	}
	def := DefaultConfig()
	if cfg.Settings.DefaultAgent != def.Settings.DefaultAgent {
		t.Errorf("expected default agent %q, got %q", def.Settings.DefaultAgent, cfg.Settings.DefaultAgent)
	}
	if len(cfg.Agents) != len(agent.DefaultAgents()) {
		t.Errorf("expected %d built-in agents, got %d", len(agent.DefaultAgents()), len(cfg.Agents))
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
agents:
  - id: reviewer
    name: Code Reviewer
    provider: api/anthropic
    model: claude-opus-4-1
    system_prompt: You review Go code.
  - id: claude
    provider: cli/claude
    options:
      execute: ["--permission-mode", "acceptEdits"]
settings:
  default_agent: reviewer
  max_depth: 4
  delegation: true
  timeout:
    query: 30
schedules:
  - name: nightly
    cron: "0 2 * * *"
    text: "@reviewer summarise today's commits"
metrics:
  addr: ":9464"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reviewer, ok := cfg.Agent("reviewer")
	if !ok {
		t.Fatal("expected reviewer agent")
	}
	if reviewer.Model != "claude-opus-4-1" || reviewer.DisplayName() != "Code Reviewer" {
		t.Errorf("unexpected reviewer: %+v", reviewer)
	}

	claude, _ := cfg.Agent("claude")
	if got := claude.Options.For(schema.ModeExecute); len(got) != 2 || got[1] != "acceptEdits" {
		t.Errorf("expected execute options, got %v", got)
	}
	if got := claude.Options.For(schema.ModeQuery); len(got) != 0 {
		t.Errorf("expected no query options, got %v", got)
	}

	// built-ins not overridden are still present, after the declared agents
	ids := cfg.AgentIDs()
	want := []string{"reviewer", "claude", "gemini", "copilot", "codex"}
	if strings.Join(ids, ",") != strings.Join(want, ",") {
		t.Errorf("expected agents %v, got %v", want, ids)
	}

	if cfg.Settings.MaxDepth != 4 || !cfg.Settings.Delegation {
		t.Errorf("unexpected settings: %+v", cfg.Settings)
	}
	if cfg.Settings.Concurrency != 8 {
		t.Errorf("expected default concurrency to survive, got %d", cfg.Settings.Concurrency)
	}
	if got := cfg.Settings.TimeoutFor(schema.ModeQuery); got != 30*time.Second {
		t.Errorf("expected 30s query timeout, got %v", got)
	}
	if got := cfg.Settings.TimeoutFor(schema.ModeExecute); got != 30*time.Minute {
		t.Errorf("expected default execute timeout, got %v", got)
	}
	if len(cfg.Schedules) != 1 || !cfg.Schedules[0].IsEnabled() {
		t.Errorf("unexpected schedules: %+v", cfg.Schedules)
	}
	if cfg.Metrics.Addr != ":9464" {
		t.Errorf("expected metrics addr, got %q", cfg.Metrics.Addr)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "agents: [not: valid")

	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_UnknownField(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "setings:\n  max_depth: 3\n")

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for misspelled key")
	}
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfg.Agents) != 4 {
		t.Errorf("expected built-in agents, got %d", len(cfg.Agents))
	}
}

func TestLoad_RejectsBadAgents(t *testing.T) {
	cases := map[string]string{
		"bad id":           "agents:\n  - id: 9lives\n    provider: cli/claude\n",
		"duplicate id":     "agents:\n  - id: bot\n    provider: cli/claude\n  - id: bot\n    provider: cli/gemini\n",
		"missing provider": "agents:\n  - id: bot\n",
		"unknown default":  "settings:\n  default_agent: nobody\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), body)
			if _, err := Load(path); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestLoad_EnvFallbacks(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("SLACK_APP_TOKEN", "xapp-env")
	path := writeConfig(t, t.TempDir(), "slack:\n  bot_token: xoxb-file\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Slack.BotToken != "xoxb-file" {
		t.Errorf("file token must win, got %q", cfg.Slack.BotToken)
	}
	if cfg.Slack.AppToken != "xapp-env" {
		t.Errorf("expected env app token, got %q", cfg.Slack.AppToken)
	}
	if !cfg.Slack.ReplyInThread {
		t.Error("expected slack defaults to survive partial override")
	}
}

func TestResolve_Explicit(t *testing.T) {
	if got := Resolve("custom.yaml"); got != "custom.yaml" {
		t.Errorf("expected explicit path, got %q", got)
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", FileName)

	cfg := DefaultConfig()
	cfg.Settings.MaxDepth = 6
	cfg.Agents = append(cfg.Agents, agent.AgentConfig{ID: "docs", Provider: agent.ProviderOpenAI, Model: "gpt-4o-mini"})

	if err := Save(&cfg, path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Settings.MaxDepth != 6 {
		t.Errorf("expected max_depth 6, got %d", loaded.Settings.MaxDepth)
	}
	if docs, ok := loaded.Agent("docs"); !ok || docs.Model != "gpt-4o-mini" {
		t.Errorf("expected docs agent to round-trip, got %+v", docs)
	}
}
