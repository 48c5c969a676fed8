package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint over HTTP.
type RemoteEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	cache      *EmbeddingCache
	client     *http.Client
}

// NewRemoteEmbedder creates an embedder backed by a hosted embeddings API
// (e.g. https://api.openai.com/v1). baseURL must not include the trailing
// "/embeddings" path segment.
func NewRemoteEmbedder(baseURL, apiKey, model string, dimensions, cacheSize int) *RemoteEmbedder {
	return &RemoteEmbedder{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type remoteEmbedRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type remoteEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed returns the embedding for text, using the cache when available.
func (e *RemoteEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	embeddings, err := e.embedUncached(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embeddings[0])
	return embeddings[0], nil
}

// EmbedBatch embeds texts not already cached in a single request, preserving order.
func (e *RemoteEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if cached, ok := e.cache.Get(t); ok {
			out[i] = cached
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	embeddings, err := e.embedUncached(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = embeddings[j]
		e.cache.Set(texts[i], embeddings[j])
	}
	return out, nil
}

func (e *RemoteEmbedder) embedUncached(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(remoteEmbedRequest{Input: texts, Model: e.model})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embedding response: %w", err)
	}
	var parsed remoteEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if parsed.Error != nil {
			return nil, fmt.Errorf("embedding API error (%d): %s", resp.StatusCode, parsed.Error.Message)
		}
		return nil, fmt.Errorf("embedding API returned status %d", resp.StatusCode)
	}
	out := make([][]float32, len(texts))
	for _, d := range parsed.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the configured embedding dimension.
func (e *RemoteEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying http.Client owns no persistent resources here.
func (e *RemoteEmbedder) Close() error {
	return nil
}

// LocalEmbedder calls a self-hosted embedding microservice exposing POST /embed
// with {"input": [...], "dimensions": N}  -> {"embeddings": [[...]]}.
type LocalEmbedder struct {
	endpoint   string
	dimensions int
	cache      *EmbeddingCache
	client     *http.Client
}

// NewLocalEmbedder creates an embedder backed by a local HTTP embedding service.
func NewLocalEmbedder(endpoint string, dimensions, cacheSize int) *LocalEmbedder {
	return &LocalEmbedder{
		endpoint:   endpoint,
		dimensions: dimensions,
		cache:      NewEmbeddingCache(cacheSize),
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

type localEmbedRequest struct {
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions"`
}

type localEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed returns the embedding for text, using the cache when available.
func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if cached, ok := e.cache.Get(text); ok {
		return cached, nil
	}
	embeddings, err := e.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	e.cache.Set(text, embeddings[0])
	return embeddings[0], nil
}

// EmbedBatch embeds texts not already cached in a single request, preserving order.
func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if cached, ok := e.cache.Get(t); ok {
			out[i] = cached
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	embeddings, err := e.call(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = embeddings[j]
		e.cache.Set(texts[i], embeddings[j])
	}
	return out, nil
}

func (e *LocalEmbedder) call(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(localEmbedRequest{Input: texts, Dimensions: e.dimensions})
	if err != nil {
		return nil, fmt.Errorf("marshal local embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build local embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("local embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("local embed service returned status %d: %s", resp.StatusCode, string(body))
	}
	var parsed localEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode local embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("local embed service returned %d embeddings for %d texts", len(parsed.Embeddings), len(texts))
	}
	return parsed.Embeddings, nil
}

// Dimensions returns the configured embedding dimension.
func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the underlying http.Client owns no persistent resources here.
func (e *LocalEmbedder) Close() error {
	return nil
}
