package ai

import (
	"context"

	"github.com/gammazero/workerpool"
	"github.com/openai/openai-go/v3/option"

	"github.com/hyperjump/labnoted/internal/models"
)

const defaultZhipuBaseURL = "https://open.bigmodel.cn/api/paas/v4/"

var zhipuModels = []ModelInfo{
	{ID: "glm-4-plus", DisplayName: "GLM-4 Plus", Provider: "zhipu"},
	{ID: "glm-4-flash", DisplayName: "GLM-4 Flash", Provider: "zhipu"},
}

// ZhipuProvider reuses the OpenAI-compatible wire protocol against Z.ai's base URL.
// The underlying openai-go client is synchronous; ZhipuProvider offloads each call onto
// a bounded worker pool so callers still get the async Provider interface.
type ZhipuProvider struct {
	inner *OpenAIProvider
	pool  *workerpool.WorkerPool
}

// NewZhipuProvider builds the GLM/Zhipu provider. baseURL defaults to the Z.ai public
// endpoint when empty.
func NewZhipuProvider(apiKey, baseURL string, poolSize int) *ZhipuProvider {
	if baseURL == "" {
		baseURL = defaultZhipuBaseURL
	}
	if poolSize <= 0 {
		poolSize = 4
	}
	inner := NewOpenAIProvider(apiKey, option.WithBaseURL(baseURL))
	inner.models = zhipuModels
	return &ZhipuProvider{inner: inner, pool: workerpool.New(poolSize)}
}

func (p *ZhipuProvider) Name() string { return "zhipu" }

func (p *ZhipuProvider) Capabilities() Capability {
	return Capability{Chat: true, Stream: true, ListModels: true}
}

func (p *ZhipuProvider) AvailableModels() []ModelInfo { return zhipuModels }

// chatResult carries a Chat call's outcome back across the worker-pool boundary.
type chatResult struct {
	resp *models.AIResponse
	err  error
}

func (p *ZhipuProvider) Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	done := make(chan chatResult, 1)
	p.pool.Submit(func() {
		resp, err := p.inner.Chat(ctx, messages, model, opts)
		done <- chatResult{resp: resp, err: err}
	})
	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stream offloads the blocking stream-setup call to the worker pool, then forwards
// events from the inner provider's channel onto the returned one.
func (p *ZhipuProvider) Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error) {
	type streamResult struct {
		ch  <-chan StreamEvent
		err error
	}
	done := make(chan streamResult, 1)
	p.pool.Submit(func() {
		ch, err := p.inner.Stream(ctx, messages, model, opts)
		done <- streamResult{ch: ch, err: err}
	})

	var inner streamResult
	select {
	case inner = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if inner.err != nil {
		return nil, inner.err
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for ev := range inner.ch {
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

// Close releases the worker pool. Safe to call once during shutdown.
func (p *ZhipuProvider) Close() {
	p.pool.StopWait()
}
