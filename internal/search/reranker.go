package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Reranker reorders the top N hybrid results with an external cross-encoder. If no
// API key is configured it is a pass-through: Rerank returns the input unmodified.
type Reranker struct {
	apiKey string
	model  string
	client *http.Client
}

// NewReranker builds a Reranker. An empty apiKey makes it a pass-through.
func NewReranker(apiKey, model string) *Reranker {
	return &Reranker{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Enabled reports whether a cross-encoder is configured.
func (r *Reranker) Enabled() bool {
	return r != nil && r.apiKey != ""
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank sends the top len(results) "title . snippet" strings plus the raw query to the
// configured cross-encoder and reorders/trims to topN. On any failure it returns the
// original order untouched — reranking is strictly an optional quality improvement.
func (r *Reranker) Rerank(ctx context.Context, query string, results []*scoredResult, topN int) []*scoredResult {
	if !r.Enabled() || len(results) == 0 {
		return truncate(results, topN)
	}

	docs := make([]string, len(results))
	for i, res := range results {
		docs[i] = fmt.Sprintf("%s . %s", res.title, res.snippet)
	}

	reqBody, err := json.Marshal(rerankRequest{Model: r.model, Query: query, Documents: docs, TopN: topN})
	if err != nil {
		return truncate(results, topN)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://api.cohere.com/v1/rerank", bytes.NewReader(reqBody))
	if err != nil {
		return truncate(results, topN)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return truncate(results, topN)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return truncate(results, topN)
	}

	var parsed rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return truncate(results, topN)
	}

	reordered := make([]*scoredResult, 0, len(parsed.Results))
	for _, item := range parsed.Results {
		if item.Index < 0 || item.Index >= len(results) {
			continue
		}
		r := cloneResult(results[item.Index])
		r.score = item.RelevanceScore
		r.searchType = "reranked"
		reordered = append(reordered, r)
	}
	if len(reordered) == 0 {
		return truncate(results, topN)
	}
	sort.SliceStable(reordered, func(i, j int) bool { return reordered[i].score > reordered[j].score })
	return truncate(reordered, topN)
}

func truncate(results []*scoredResult, topN int) []*scoredResult {
	if topN > 0 && len(results) > topN {
		return results[:topN]
	}
	return results
}
