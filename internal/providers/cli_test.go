package providers

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/schema"
)

func shProvider(t *testing.T, script string) *CLIProvider {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	return NewCLIProvider(ProviderSpec{
		Name:        "test/sh",
		Kind:        KindCLI,
		Binary:      "sh",
		BaseArgs:    []string{"-c", script, "sh"},
		ExecuteArgs: []string{"--write"},
		ModelFlag:   "--model",
	})
}

func TestCLIProvider_Args(t *testing.T) {
	spec := *FindByName(agent.ProviderClaude)
	p := NewCLIProvider(spec)

	args := p.Args(schema.ProviderCall{Mode: schema.ModeExecute, Model: "opus", Args: []string{"--verbose"}})
	assert.Equal(t, []string{"--print", "--permission-mode", "acceptEdits", "--verbose", "--model", "opus"}, args)

	args = p.Args(schema.ProviderCall{Mode: schema.ModeQuery})
	assert.Equal(t, []string{"--print"}, args)
}

func TestCLIProvider_PromptFlag(t *testing.T) {
	p := NewCLIProvider(*FindByName(agent.ProviderCopilot))

	args := p.Args(schema.ProviderCall{Mode: schema.ModeQuery, Prompt: "review", SystemPrompt: "be brief"})
	assert.Equal(t, []string{"-p", "be brief\n\nreview"}, args)
}

func TestCLIProvider_CallPassesPromptOnStdin(t *testing.T) {
	p := shProvider(t, `echo "args:$*"; cat`)

	out, err := p.Call(context.Background(), schema.ProviderCall{
		AgentID:      "claude",
		SystemPrompt: "You are terse.",
		Prompt:       "say hi",
		Mode:         schema.ModeExecute,
		Model:        "sonnet",
	})
	require.NoError(t, err)
	assert.Equal(t, "args:--write --model sonnet\nYou are terse.\n\nsay hi", out)
}

func TestCLIProvider_WorkingDirectory(t *testing.T) {
	p := shProvider(t, `pwd`)
	dir := t.TempDir()

	out, err := p.Call(context.Background(), schema.ProviderCall{WorkingDir: dir})
	require.NoError(t, err)
	assert.Contains(t, out, dir)
}

func TestCLIProvider_NonZeroExit(t *testing.T) {
	p := shProvider(t, `echo "not logged in" >&2; exit 3`)

	_, err := p.Call(context.Background(), schema.ProviderCall{Prompt: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 3")
	assert.Contains(t, err.Error(), "not logged in")
}

func TestCLIProvider_CancelKillsProcess(t *testing.T) {
	p := shProvider(t, `exec sleep 10`)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Call(ctx, schema.ProviderCall{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestCLIProvider_MissingBinary(t *testing.T) {
	p := NewCLIProvider(ProviderSpec{Name: "test/missing", Kind: KindCLI, Binary: "crewx-no-such-binary"})

	_, ok := p.Available()
	assert.False(t, ok)

	_, err := p.Call(context.Background(), schema.ProviderCall{})
	assert.Error(t, err)
}
