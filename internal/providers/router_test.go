package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowonlabs/crewx/internal/config"
	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/config/provider"
	"github.com/sowonlabs/crewx/internal/schema"
)

type fakeProvider struct {
	name string
	got  schema.ProviderCall
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Call(ctx context.Context, call schema.ProviderCall) (string, error) {
	f.got = call
	return "reply from " + call.AgentID, nil
}

func TestRouter_Invoke(t *testing.T) {
	fake := &fakeProvider{name: "fake"}
	r := NewRouter([]agent.AgentConfig{{
		ID:               "reviewer",
		Provider:         "fake",
		Model:            "default-model",
		SystemPrompt:     "Review carefully.",
		WorkingDirectory: "/repo",
		Options:          agent.Options{Execute: []string{"--write"}},
	}}, map[string]schema.Provider{"fake": fake})

	out, err := r.Invoke(context.Background(), schema.InvokeRequest{
		AgentID: "reviewer",
		Prompt:  "check main.go",
		Context: "thread: earlier discussion",
		Mode:    schema.ModeExecute,
	})
	require.NoError(t, err)
	assert.Equal(t, "reply from reviewer", out)

	assert.Equal(t, "default-model", fake.got.Model)
	assert.Equal(t, "Review carefully.", fake.got.SystemPrompt)
	assert.Equal(t, "/repo", fake.got.WorkingDir)
	assert.Equal(t, []string{"--write"}, fake.got.Args)
	assert.Equal(t, "<context>\nthread: earlier discussion\n</context>\n\ncheck main.go", fake.got.Prompt)
}

func TestRouter_ExplicitModelWins(t *testing.T) {
	fake := &fakeProvider{name: "fake"}
	r := NewRouter([]agent.AgentConfig{{ID: "claude", Provider: "fake", Model: "sonnet"}}, map[string]schema.Provider{"fake": fake})

	_, err := r.Invoke(context.Background(), schema.InvokeRequest{AgentID: "claude", Model: "opus", Mode: schema.ModeQuery})
	require.NoError(t, err)
	assert.Equal(t, "opus", fake.got.Model)
	assert.Empty(t, fake.got.Args)
}

func TestRouter_Errors(t *testing.T) {
	r := NewRouter([]agent.AgentConfig{{ID: "orphan", Provider: "missing"}}, map[string]schema.Provider{})

	_, err := r.Invoke(context.Background(), schema.InvokeRequest{AgentID: "ghost"})
	assert.ErrorContains(t, err, "unknown agent @ghost")

	_, err = r.Invoke(context.Background(), schema.InvokeRequest{AgentID: "orphan"})
	assert.ErrorContains(t, err, "not available")
}

func TestRouter_Directory(t *testing.T) {
	r := NewRouter([]agent.AgentConfig{
		{ID: "b", Provider: "x"},
		{ID: "a", Provider: "x"},
	}, nil)

	assert.Equal(t, []string{"b", "a"}, r.AgentIDs())
	assert.True(t, r.Has("a"))
	assert.False(t, r.Has("c"))
}

func TestFromConfig_BuildsProvidersPerName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Agents = append(cfg.Agents, agent.AgentConfig{ID: "api", Provider: agent.ProviderOpenAI})

	r, err := FromConfig(&cfg)
	require.NoError(t, err)

	for _, id := range []string{"claude", "gemini", "copilot", "codex", "api"} {
		p, ok := r.Provider(id)
		require.True(t, ok, id)
		a, _ := r.Agent(id)
		assert.Equal(t, a.Provider, p.Name())
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New("cli/emacs", provider.ProvidersConfig{})
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	assert.Equal(t, "task", BuildPrompt("  ", "task"))
	assert.Equal(t, "<context>\nctx\n</context>\n\ntask", BuildPrompt("ctx\n", "task"))
}
