package ai

import (
	"context"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
)

// openAIModels is the set of chat models this provider advertises to the router.
var openAIModels = []ModelInfo{
	{ID: "gpt-4o", DisplayName: "GPT-4o", Provider: "openai"},
	{ID: "gpt-4o-mini", DisplayName: "GPT-4o mini", Provider: "openai"},
	{ID: "gpt-4.1", DisplayName: "GPT-4.1", Provider: "openai"},
}

// OpenAIProvider sends messages as-is to the chat-completions endpoint and streams
// token deltas via the SDK's accumulator-backed SSE stream.
type OpenAIProvider struct {
	client client
	models []ModelInfo
}

// client is the subset of *openai.Client this package calls, so tests can substitute
// a fake without depending on the real HTTP transport.
type client interface {
	newChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
	newChatCompletionStream(ctx context.Context, params openai.ChatCompletionNewParams) chatStream
}

type chatStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
	Close() error
}

type realClient struct {
	openai.Client
}

func (c *realClient) newChatCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.Chat.Completions.New(ctx, params)
}

func (c *realClient) newChatCompletionStream(ctx context.Context, params openai.ChatCompletionNewParams) chatStream {
	return c.Chat.Completions.NewStreaming(ctx, params)
}

// NewOpenAIProvider builds the OpenAI-style provider. Extra request options (for example
// option.WithBaseURL) let the same constructor serve any OpenAI-compatible endpoint;
// ZhipuProvider wraps an OpenAIProvider built this way.
func NewOpenAIProvider(apiKey string, opts ...option.RequestOption) *OpenAIProvider {
	allOpts := append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &OpenAIProvider{client: &realClient{Client: openai.NewClient(allOpts...)}, models: openAIModels}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Capabilities() Capability {
	return Capability{Chat: true, Stream: true, ListModels: true}
}

func (p *OpenAIProvider) AvailableModels() []ModelInfo { return p.models }

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, toOpenAIUserMessage(m))
		}
	}
	return out
}

func toOpenAIUserMessage(m models.Message) openai.ChatCompletionMessageParamUnion {
	if len(m.Images) == 0 {
		return openai.UserMessage(m.Content)
	}
	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, 1+len(m.Images))
	parts = append(parts, openai.ChatCompletionContentPartUnionParam{
		OfText: &openai.ChatCompletionContentPartTextParam{Text: m.Content},
	})
	for _, img := range m.Images {
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:" + img.MimeType + ";base64," + img.Data,
				},
			},
		})
	}
	return openai.UserMessage(parts)
}

func buildChatParams(messages []models.Message, model string, opts models.ChatOptions) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    model,
		Messages: toOpenAIMessages(messages),
	}
	if opts.Temperature != nil {
		params.Temperature = openai.Float(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		params.MaxTokens = openai.Int(int64(*opts.MaxTokens))
	}
	return params
}

func (p *OpenAIProvider) Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	params := buildChatParams(messages, model, opts)
	resp, err := p.client.newChatCompletion(ctx, params)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "openai chat completion failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, apperr.Provider("openai", "empty choices in response", 0)
	}
	choice := resp.Choices[0]
	return &models.AIResponse{
		Content:      choice.Message.Content,
		Model:        resp.Model,
		Provider:     "openai",
		FinishReason: string(choice.FinishReason),
		Usage: &models.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

func (p *OpenAIProvider) Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error) {
	params := buildChatParams(messages, model, opts)
	apiStream := p.client.newChatCompletionStream(ctx, params)

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer apiStream.Close()

		for apiStream.Next() {
			chunk := apiStream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- StreamEvent{Type: StreamEventChunk, Chunk: delta}:
			case <-ctx.Done():
				return
			}
		}
		if err := apiStream.Err(); err != nil {
			select {
			case out <- StreamEvent{Type: StreamEventError, Err: apperr.Provider("openai", err.Error(), 0)}:
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
