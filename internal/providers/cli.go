package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/sowonlabs/crewx/internal/schema"
	"github.com/sowonlabs/crewx/internal/shared/llmutils"
)

// CLIProvider runs a vendor coding-agent CLI once per call.
// The prompt is written to stdin unless the spec names a prompt flag.
type CLIProvider struct {
	spec   ProviderSpec
	binary string
}

func NewCLIProvider(spec ProviderSpec) *CLIProvider {
	return &CLIProvider{spec: spec, binary: spec.Binary}
}

func (p *CLIProvider) Name() string { return p.spec.Name }

// Available reports whether the binary is on PATH.
func (p *CLIProvider) Available() (string, bool) {
	path, err := exec.LookPath(p.binary)
	return path, err == nil
}

// Args returns the command-line arguments for call, without the binary.
func (p *CLIProvider) Args(call schema.ProviderCall) []string {
	args := append([]string{}, p.spec.BaseArgs...)
	args = append(args, p.spec.ModeArgs(call.Mode)...)
	args = append(args, call.Args...)
	if call.Model != "" && p.spec.ModelFlag != "" {
		args = append(args, p.spec.ModelFlag, call.Model)
	}
	if p.spec.PromptFlag != "" {
		args = append(args, p.spec.PromptFlag, stdinText(call))
	}
	return args
}

// Call runs the CLI and returns its trimmed stdout. A non-zero exit returns
// an error carrying the trimmed stderr. Cancelling ctx kills the process.
func (p *CLIProvider) Call(ctx context.Context, call schema.ProviderCall) (string, error) {
	cmd := exec.CommandContext(ctx, p.binary, p.Args(call)...)
	cmd.Dir = call.WorkingDir
	cmd.WaitDelay = 5 * time.Second
	if p.spec.PromptFlag == "" {
		cmd.Stdin = strings.NewReader(stdinText(call))
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	slog.Debug("CLI provider finished",
		"provider", p.spec.Name,
		"agent", call.AgentID,
		"elapsed", time.Since(start),
		"stdout_bytes", stdout.Len(),
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", ctxErr
	}
	if err != nil {
		var exitErr *exec.ExitError
		msg := strings.TrimSpace(stderr.String())
		if errors.As(err, &exitErr) {
			if msg == "" {
				msg = llmutils.Truncate(strings.TrimSpace(stdout.String()), 500)
			}
			return "", fmt.Errorf("%s exited with status %d: %s", p.binary, exitErr.ExitCode(), msg)
		}
		return "", fmt.Errorf("run %s: %w", p.binary, err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// stdinText prefixes the system prompt, since the CLIs have no portable
// system-prompt flag.
func stdinText(call schema.ProviderCall) string {
	if call.SystemPrompt == "" {
		return call.Prompt
	}
	return call.SystemPrompt + "\n\n" + call.Prompt
}
