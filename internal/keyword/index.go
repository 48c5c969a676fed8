// Package keyword provides full-text indexing and search over note title/body text.
package keyword

import "context"

// KeywordIndex defines full-text search operations over notes.
type KeywordIndex interface {
	Index(ctx context.Context, id string, title, content string) error
	// Search runs query (already a keyword query expression per the preprocessor)
	// and returns up to limit hits with a highlighted snippet.
	Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error)
	Delete(ctx context.Context, id string) error
	DocCount() (uint64, error)
	Close() error
}

// KeywordResult is a single full-text search hit.
type KeywordResult struct {
	ID      string
	Score   float64
	Snippet string
}
