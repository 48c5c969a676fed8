package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/models"
)

// Router resolves a requested model id to the provider that serves it and forwards
// chat/stream calls. The zero value is not usable; build one with NewRouter.
type Router struct {
	mu        sync.RWMutex
	providers map[string]Provider
	order     []string // registration order, for the nil-model "first provider" rule
	cfg       *config.AIConfig
	logger    *zap.Logger
}

// NewRouter builds an empty router. Providers are added with Register, or in bulk by
// NewRouterFromConfig.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{providers: make(map[string]Provider), logger: logger}
}

// NewRouterFromConfig instantiates every provider configured in cfg. A missing API key
// for a given provider simply skips it; other instantiation failures are logged and
// skipped as well, matching the registry's "inspect config, skip what fails" behavior.
func NewRouterFromConfig(ctx context.Context, cfg *config.AIConfig, logger *zap.Logger) *Router {
	r := NewRouter(logger)
	if cfg == nil {
		return r
	}
	r.cfg = cfg

	if cfg.OpenAIAPIKey != "" {
		r.Register("openai", NewOpenAIProvider(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		r.Register("anthropic", NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.AnthropicMaxTokensDefault))
	}
	if cfg.GoogleAPIKey != "" {
		p, err := NewGoogleProvider(ctx, cfg.GoogleAPIKey)
		if err != nil {
			r.logf("skipping google provider: %v", err)
		} else {
			r.Register("google", p)
		}
	}
	if cfg.ZhipuAPIKey != "" {
		r.Register("zhipu", NewZhipuProvider(cfg.ZhipuAPIKey, cfg.ZhipuBaseURL, 0))
	}
	return r
}

func (r *Router) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Sugar().Infof(format, args...)
	}
}

// Register adds or replaces a provider under name.
func (r *Router) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// RegisterOAuth constructs the OAuth variant of the named provider. For openai-codex the
// account id is taken from extras[0] if supplied, else extracted from the access token;
// extraction failure makes this a no-op. providerName selects which concrete OAuth
// constructor to use ("openai-codex" or "google").
func (r *Router) RegisterOAuth(providerName, accessToken string, extras ...string) {
	switch providerName {
	case "openai-codex":
		accountID := ""
		if len(extras) > 0 {
			accountID = extras[0]
		}
		if accountID == "" {
			id, err := ExtractAccountID(accessToken)
			if err != nil {
				r.logf("oauth registration for openai-codex skipped: %v", err)
				return
			}
			accountID = id
		}
		r.Register("openai-codex", NewCodexProvider(accessToken, accountID))
	case "google":
		r.Register("google", NewGoogleOAuthProvider(accessToken))
	default:
		r.logf("oauth registration requested for unknown provider %q", providerName)
	}
}

// Remove deletes a provider, returning whether it was present.
func (r *Router) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return false
	}
	delete(r.providers, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// clone returns a shallow copy of the router, sharing every provider instance except
// for r's own map and order slice, which are copied so the clone's Register calls never
// mutate the singleton.
func (r *Router) clone() *Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := &Router{providers: make(map[string]Provider, len(r.providers)), cfg: r.cfg, logger: r.logger}
	for k, v := range r.providers {
		cp.providers[k] = v
	}
	cp.order = append([]string(nil), r.order...)
	return cp
}

// WithOAuth returns a clone of the router with the OAuth variant of providerName
// registered, for per-request injection. The receiver is never mutated.
func (r *Router) WithOAuth(providerName, accessToken string, extras ...string) *Router {
	cp := r.clone()
	cp.RegisterOAuth(providerName, accessToken, extras...)
	return cp
}

// modelProviderHint maps a model id prefix to the provider name it most likely belongs
// to, used only to decide whether per-request OAuth injection applies.
func modelProviderHint(modelID string) (provider string, ok bool) {
	switch {
	case strings.HasPrefix(modelID, "gpt-"):
		return "openai", true
	case strings.HasPrefix(modelID, "gemini-"):
		return "google", true
	default:
		return "", false
	}
}

// ProviderHint exposes modelProviderHint for callers (e.g. the HTTP layer) deciding
// whether to build a WithOAuth clone before calling Chat/Stream.
func ProviderHint(modelID string) (string, bool) { return modelProviderHint(modelID) }

// Resolve picks the provider for modelID. A nil modelID picks the first model of the
// first registered provider, in registration order.
func (r *Router) Resolve(modelID *string) (resolvedModel string, provider Provider, err error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.providers) == 0 {
		return "", nil, apperr.Router("no AI providers registered")
	}

	if modelID == nil || *modelID == "" {
		for _, name := range r.order {
			p := r.providers[name]
			if avail := p.AvailableModels(); len(avail) > 0 {
				return avail[0].ID, p, nil
			}
		}
		return "", nil, apperr.Router("no provider has any available models")
	}

	for _, name := range r.order {
		p := r.providers[name]
		for _, m := range p.AvailableModels() {
			if m.ID == *modelID {
				return m.ID, p, nil
			}
		}
	}
	return "", nil, apperr.Router("unknown model id %q", *modelID)
}

// Chat resolves request.Model and forwards the call.
func (r *Router) Chat(ctx context.Context, request models.ChatRequest) (*models.AIResponse, error) {
	resolvedModel, provider, err := r.Resolve(request.Model)
	if err != nil {
		return nil, err
	}
	return provider.Chat(ctx, request.Messages, resolvedModel, request.Options)
}

// SSEFrame is one already-formatted server-sent-event frame ready to write to an
// http.ResponseWriter.
type SSEFrame string

type chunkPayload struct {
	Chunk string `json:"chunk"`
}
type errorPayload struct {
	Error string `json:"error"`
}

func chunkFrame(text string) SSEFrame {
	data, _ := json.Marshal(chunkPayload{Chunk: text})
	return SSEFrame(fmt.Sprintf("data: %s\n\n", data))
}

func errorFrame(message string) SSEFrame {
	data, _ := json.Marshal(errorPayload{Error: message})
	return SSEFrame(fmt.Sprintf("event: error\ndata: %s\n\n", data))
}

const doneFrame SSEFrame = "data: [DONE]\n\n"

// Stream resolves request.Model and forwards provider stream events as pre-framed SSE.
// Resolution failures propagate synchronously, before the channel is returned, so the
// caller can still reply with a normal error response instead of starting the stream.
func (r *Router) Stream(ctx context.Context, request models.ChatRequest) (<-chan SSEFrame, error) {
	resolvedModel, provider, err := r.Resolve(request.Model)
	if err != nil {
		return nil, err
	}
	events, err := provider.Stream(ctx, request.Messages, resolvedModel, request.Options)
	if err != nil {
		return nil, err
	}

	out := make(chan SSEFrame)
	go func() {
		defer close(out)
		for ev := range events {
			switch ev.Type {
			case StreamEventChunk:
				select {
				case out <- chunkFrame(ev.Chunk):
				case <-ctx.Done():
					return
				}
			case StreamEventError:
				msg := "stream failed"
				if ev.Err != nil {
					msg = ev.Err.Error()
				}
				select {
				case out <- errorFrame(msg):
				case <-ctx.Done():
				}
				return
			case StreamEventDone:
				select {
				case out <- doneFrame:
				case <-ctx.Done():
				}
				return
			}
		}
	}()
	return out, nil
}

// ListModels returns every model advertised by every registered provider, sorted by
// provider name then model id for stable listing output.
func (r *Router) ListModels() []ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []ModelInfo
	for _, name := range r.order {
		out = append(out, r.providers[name].AvailableModels()...)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ProviderNames returns the registered provider names in registration order.
func (r *Router) ProviderNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
