package providers

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/sowonlabs/crewx/internal/config/agent"
	"github.com/sowonlabs/crewx/internal/config/provider"
	"github.com/sowonlabs/crewx/internal/schema"
)

// OpenAIProvider answers through the Chat Completions API of OpenAI or any
// compatible endpoint set via api_base.
type OpenAIProvider struct {
	client       openai.Client
	defaultModel string
	maxTokens    int64
}

func NewOpenAIProvider(cfg provider.ProviderConfig, opts ...option.RequestOption) *OpenAIProvider {
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

	return &OpenAIProvider{
		client:       openai.NewClient(clientOpts...),
		defaultModel: cfg.DefaultModel,
		maxTokens:    int64(cfg.MaxTokens),
	}
}

func (p *OpenAIProvider) Name() string { return agent.ProviderOpenAI }

func (p *OpenAIProvider) Call(ctx context.Context, call schema.ProviderCall) (string, error) {
	model := call.Model
	if model == "" {
		model = p.defaultModel
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if call.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(call.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(call.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: messages,
	}
	if p.maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(p.maxTokens)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api error: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
