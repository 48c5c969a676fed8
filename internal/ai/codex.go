package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
)

const codexResponsesURL = "https://chatgpt.com/backend-api/codex/responses"

var codexModels = []ModelInfo{
	{ID: "gpt-5-codex", DisplayName: "GPT-5 Codex (OAuth)", Provider: "openai-codex"},
}

// CodexProvider authenticates with a bearer token obtained out-of-band via the OAuth
// device flow rather than an API key, and talks to the Responses API instead of
// chat-completions: messages are flattened into a single labeled "input" string, and the
// streamed SSE only ever yields "response.output_text.delta" chunks.
type CodexProvider struct {
	accessToken string
	accountID   string
	httpClient  *http.Client
}

// NewCodexProvider builds the OAuth-backed provider. accountID, when empty, is derived
// from the access token's JWT claims (see ExtractAccountID); extraction failures leave
// accountID empty and the provider still works for backends that don't require it.
func NewCodexProvider(accessToken, accountID string) *CodexProvider {
	if accountID == "" {
		if id, err := ExtractAccountID(accessToken); err == nil {
			accountID = id
		}
	}
	return &CodexProvider{accessToken: accessToken, accountID: accountID, httpClient: http.DefaultClient}
}

// ExtractAccountID decodes the middle (payload) segment of the bearer JWT and reads the
// chatgpt_account_id claim nested under the "https://api.openai.com/auth" namespace.
func ExtractAccountID(token string) (string, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("not a JWT: expected 3 segments, got %d", len(parts))
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("decode JWT payload: %w", err)
	}
	var claims struct {
		Auth struct {
			ChatGPTAccountID string `json:"chatgpt_account_id"`
		} `json:"https://api.openai.com/auth"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("unmarshal JWT claims: %w", err)
	}
	if claims.Auth.ChatGPTAccountID == "" {
		return "", fmt.Errorf("chatgpt_account_id claim not present")
	}
	return claims.Auth.ChatGPTAccountID, nil
}

func (p *CodexProvider) Name() string { return "openai-codex" }

func (p *CodexProvider) Capabilities() Capability {
	return Capability{Chat: false, Stream: true, ListModels: true}
}

func (p *CodexProvider) AvailableModels() []ModelInfo { return codexModels }

// flattenInput renders messages as "ROLE: content" lines, the shape the Responses-API
// backend expects in place of a structured messages array.
func flattenInput(messages []models.Message) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		lines = append(lines, strings.ToUpper(string(m.Role))+": "+m.Content)
	}
	return strings.Join(lines, "\n\n")
}

type codexRequest struct {
	Model  string `json:"model"`
	Input  string `json:"input"`
	Stream bool   `json:"stream"`
}

func (p *CodexProvider) newRequest(ctx context.Context, model string, messages []models.Message) (*http.Request, error) {
	body, err := json.Marshal(codexRequest{Model: model, Input: flattenInput(messages), Stream: true})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, codexResponsesURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.accessToken)
	if p.accountID != "" {
		req.Header.Set("chatgpt-account-id", p.accountID)
	}
	return req, nil
}

// Chat is unsupported: the Codex backend is stream-only in this integration, matching
// the provider's Capability{Chat: false} advertisement.
func (p *CodexProvider) Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	return nil, apperr.Router("openai-codex provider only supports streaming")
}

type codexSSEEvent struct {
	Type  string `json:"type"`
	Delta string `json:"delta"`
}

func (p *CodexProvider) Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error) {
	req, err := p.newRequest(ctx, model, messages)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "build codex request", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "codex request failed", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, apperr.Provider("openai-codex", "non-2xx response", resp.StatusCode)
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				break
			}
			var event codexSSEEvent
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				continue
			}
			if event.Type != "response.output_text.delta" || event.Delta == "" {
				continue
			}
			select {
			case out <- StreamEvent{Type: StreamEventChunk, Chunk: event.Delta}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- StreamEvent{Type: StreamEventError, Err: apperr.Provider("openai-codex", err.Error(), 0)}:
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
