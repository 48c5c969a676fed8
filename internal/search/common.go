package search

import "github.com/hyperjump/labnoted/internal/models"

// scoredResult is the common internal shape every retrieval strategy (FTS, trigram,
// semantic) produces before it is merged, reranked, or externalized as a models.SearchResult.
type scoredResult struct {
	noteID     string
	title      string
	snippet    string
	score      float64
	searchType models.SearchType
}

func toModel(r *scoredResult) *models.SearchResult {
	return &models.SearchResult{
		NoteID:     r.noteID,
		Title:      r.title,
		Snippet:    r.snippet,
		Score:      r.score,
		SearchType: r.searchType,
	}
}

func toModels(rs []*scoredResult) []*models.SearchResult {
	out := make([]*models.SearchResult, len(rs))
	for i, r := range rs {
		out[i] = toModel(r)
	}
	return out
}
