package models

import "fmt"

// SearchType selects which retrieval strategy produced (or should produce) a result set.
type SearchType string

const (
	SearchHybrid   SearchType = "hybrid"
	SearchFTS      SearchType = "fts"
	SearchSemantic SearchType = "semantic"
	SearchTrigram  SearchType = "trigram"
	SearchReranked SearchType = "reranked"
)

// SearchQuery represents a search request.
type SearchQuery struct {
	Query string     `json:"query"`
	Type  SearchType `json:"type,omitempty"`
	Limit int        `json:"limit,omitempty"`
}

// Validate normalizes Limit and Type, returning an error for an empty query or an
// out-of-range limit. Mirrors the boundary behaviors in the external interface contract:
// empty query and limit > 100 are both caller errors, not silently-clamped values.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit == 0 {
		q.Limit = 10
	}
	if q.Limit > 100 {
		return fmt.Errorf("limit must be <= 100")
	}
	if q.Limit < 1 {
		return fmt.Errorf("limit must be >= 1")
	}
	switch q.Type {
	case "":
		q.Type = SearchHybrid
	case SearchHybrid, SearchFTS, SearchSemantic, SearchTrigram:
	default:
		return fmt.Errorf("unknown search type: %s", q.Type)
	}
	return nil
}
