package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/config/provider"
	"github.com/sowonlabs/crewx/internal/schema"
)

const defaultAnthropicMaxTokens = 8192

// AnthropicProvider answers through the Anthropic Messages API.
// API-backed agents cannot touch the workspace, so execute mode behaves
// like query mode.
type AnthropicProvider struct {
	client       anthropic.Client
	defaultModel string
	maxTokens    int64
}

func NewAnthropicProvider(cfg provider.ProviderConfig, opts ...option.RequestOption) *AnthropicProvider {
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.APIBase != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.APIBase))
	}
	for k, v := range cfg.ExtraHeaders {
		clientOpts = append(clientOpts, option.WithHeader(k, v))
	}
	clientOpts = append(clientOpts, opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:       anthropic.NewClient(clientOpts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    maxTokens,
	}
}

func (p *AnthropicProvider) Name() string { return agent.ProviderAnthropic }

func (p *AnthropicProvider) Call(ctx context.Context, call schema.ProviderCall) (string, error) {
	model := call.Model
	if model == "" {
		model = p.defaultModel
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(call.Prompt)),
		},
	}
	if call.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: call.SystemPrompt}}
	}

	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			if text := block.AsText().Text; text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n"), nil
}
