package ai

import (
	"context"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
)

var anthropicModels = []ModelInfo{
	{ID: "claude-opus-4-1", DisplayName: "Claude Opus 4.1", Provider: "anthropic"},
	{ID: "claude-sonnet-4-5", DisplayName: "Claude Sonnet 4.5", Provider: "anthropic"},
	{ID: "claude-haiku-4-5", DisplayName: "Claude Haiku 4.5", Provider: "anthropic"},
}

// AnthropicProvider concatenates system messages into the SDK's top-level System
// parameter and always sends an explicit max_tokens, defaulting when the caller omits it.
type AnthropicProvider struct {
	client            anthropic.Client
	defaultMaxTokens  int64
}

// NewAnthropicProvider builds the Anthropic-style provider. defaultMaxTokens of 0 falls
// back to defaultAnthropicMaxTokens.
func NewAnthropicProvider(apiKey string, defaultMaxTokens int) *AnthropicProvider {
	if defaultMaxTokens <= 0 {
		defaultMaxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:           anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultMaxTokens: int64(defaultMaxTokens),
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Capabilities() Capability {
	return Capability{Chat: true, Stream: true, ListModels: true}
}

func (p *AnthropicProvider) AvailableModels() []ModelInfo { return anthropicModels }

func toAnthropicMessages(messages []models.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		block := anthropic.NewTextBlock(m.Content)
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(block))
		default:
			out = append(out, anthropic.NewUserMessage(block))
		}
	}
	return out
}

func (p *AnthropicProvider) buildParams(messages []models.Message, model string, opts models.ChatOptions) anthropic.MessageNewParams {
	system, rest := concatSystemMessages(messages)
	maxTokens := p.defaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = int64(*opts.MaxTokens)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  toAnthropicMessages(rest),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if opts.Temperature != nil {
		params.Temperature = anthropic.Float(*opts.Temperature)
	}
	return params
}

func (p *AnthropicProvider) Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	params := p.buildParams(messages, model, opts)
	resp, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "anthropic message create failed", err)
	}
	content := ""
	for _, block := range resp.Content {
		if text := block.Text; text != "" {
			content += text
		}
	}
	return &models.AIResponse{
		Content:      content,
		Model:        string(resp.Model),
		Provider:     "anthropic",
		FinishReason: string(resp.StopReason),
		Usage: &models.TokenUsage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		},
	}, nil
}

func (p *AnthropicProvider) Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error) {
	params := p.buildParams(messages, model, opts)
	apiStream := p.client.Messages.NewStreaming(ctx, params)

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer apiStream.Close()

		for apiStream.Next() {
			event := apiStream.Current()
			delta, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			text := delta.Delta.Text
			if text == "" {
				continue
			}
			select {
			case out <- StreamEvent{Type: StreamEventChunk, Chunk: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := apiStream.Err(); err != nil {
			select {
			case out <- StreamEvent{Type: StreamEventError, Err: apperr.Provider("anthropic", err.Error(), 0)}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- StreamEvent{Type: StreamEventDone}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}
