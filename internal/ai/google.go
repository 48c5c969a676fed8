package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/models"
)

var googleModels = []ModelInfo{
	{ID: "gemini-2.5-pro", DisplayName: "Gemini 2.5 Pro", Provider: "google"},
	{ID: "gemini-2.5-flash", DisplayName: "Gemini 2.5 Flash", Provider: "google"},
}

// GoogleProvider supports two authentication modes: API-key mode drives the genai SDK
// directly, OAuth mode calls the Gemini REST endpoint with a bearer token since the SDK
// does not accept a bearer-token credential. Exactly one of client/oauthToken is set.
type GoogleProvider struct {
	client      *genai.Client
	oauthToken  string
	httpClient  *http.Client
}

// NewGoogleProvider builds the API-key-mode provider.
func NewGoogleProvider(ctx context.Context, apiKey string) (*GoogleProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "create genai client", err)
	}
	return &GoogleProvider{client: client}, nil
}

// NewGoogleOAuthProvider builds the OAuth-mode provider, which bypasses the SDK and
// talks to the REST endpoint directly with a bearer token.
func NewGoogleOAuthProvider(accessToken string) *GoogleProvider {
	return &GoogleProvider{oauthToken: accessToken, httpClient: http.DefaultClient}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Capabilities() Capability {
	return Capability{Chat: true, Stream: true, ListModels: true}
}

func (p *GoogleProvider) AvailableModels() []ModelInfo { return googleModels }

// toGoogleContents renames the assistant role to "model" (Gemini's term) and extracts
// system messages into a separate systemInstruction, per the dual-mode contract.
func toGoogleContents(messages []models.Message) (systemInstruction string, contents []*genai.Content) {
	var systemParts []string
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := genai.RoleUser
		if m.Role == models.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return joinNonEmpty(systemParts, "\n\n"), contents
}

func (p *GoogleProvider) Chat(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	if p.oauthToken != "" {
		return p.chatREST(ctx, messages, model, opts)
	}
	system, contents := toGoogleContents(messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if opts.Temperature != nil {
		t := float32(*opts.Temperature)
		cfg.Temperature = &t
	}
	if opts.MaxTokens != nil {
		m := int32(*opts.MaxTokens)
		cfg.MaxOutputTokens = m
	}
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "genai generate content failed", err)
	}
	return &models.AIResponse{Content: resp.Text(), Model: model, Provider: "google"}, nil
}

func (p *GoogleProvider) Stream(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error) {
	if p.oauthToken != "" {
		return p.streamREST(ctx, messages, model, opts)
	}
	system, contents := toGoogleContents(messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	out := make(chan StreamEvent)
	go func() {
		defer close(out)
		for chunk, err := range p.client.Models.GenerateContentStream(ctx, model, contents, cfg) {
			if err != nil {
				select {
				case out <- StreamEvent{Type: StreamEventError, Err: apperr.Provider("google", err.Error(), 0)}:
				case <-ctx.Done():
				}
				return
			}
			text := chunk.Text()
			if text == "" {
				continue
			}
			select {
			case out <- StreamEvent{Type: StreamEventChunk, Chunk: text}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- StreamEvent{Type: StreamEventDone}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}

type googleRESTPart struct {
	Text string `json:"text"`
}
type googleRESTContent struct {
	Role  string           `json:"role"`
	Parts []googleRESTPart `json:"parts"`
}
type googleRESTRequest struct {
	Contents          []googleRESTContent `json:"contents"`
	SystemInstruction *googleRESTContent  `json:"systemInstruction,omitempty"`
}
type googleRESTResponse struct {
	Candidates []struct {
		Content googleRESTContent `json:"content"`
	} `json:"candidates"`
}

func buildGoogleRESTRequest(messages []models.Message) googleRESTRequest {
	var systemParts []string
	var contents []googleRESTContent
	for _, m := range messages {
		if m.Role == models.RoleSystem {
			systemParts = append(systemParts, m.Content)
			continue
		}
		role := "user"
		if m.Role == models.RoleAssistant {
			role = "model"
		}
		contents = append(contents, googleRESTContent{Role: role, Parts: []googleRESTPart{{Text: m.Content}}})
	}
	req := googleRESTRequest{Contents: contents}
	if system := joinNonEmpty(systemParts, "\n\n"); system != "" {
		req.SystemInstruction = &googleRESTContent{Parts: []googleRESTPart{{Text: system}}}
	}
	return req
}

func (p *GoogleProvider) chatREST(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (*models.AIResponse, error) {
	body, err := json.Marshal(buildGoogleRESTRequest(messages))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent", model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.oauthToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "google REST request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, apperr.Provider("google", "non-2xx response", resp.StatusCode)
	}
	var parsed googleRESTResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "decode google REST response", err)
	}
	content := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		content = parsed.Candidates[0].Content.Parts[0].Text
	}
	return &models.AIResponse{Content: content, Model: model, Provider: "google"}, nil
}

func (p *GoogleProvider) streamREST(ctx context.Context, messages []models.Message, model string, opts models.ChatOptions) (<-chan StreamEvent, error) {
	body, err := json.Marshal(buildGoogleRESTRequest(messages))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	url := fmt.Sprintf("https://generativelanguage.googleapis.com/v1beta/models/%s:streamGenerateContent?alt=sse", model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.oauthToken)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindProviderFailure, "google REST stream request failed", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, apperr.Provider("google", "non-2xx response", resp.StatusCode)
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
			var parsed googleRESTResponse
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &parsed); err != nil {
				continue
			}
			if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
				continue
			}
			text := parsed.Candidates[0].Content.Parts[0].Text
			if text == "" {
				continue
			}
			select {
			case out <- StreamEvent{Type: StreamEventChunk, Chunk: text}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- StreamEvent{Type: StreamEventError, Err: apperr.Provider("google", err.Error(), 0)}:
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
