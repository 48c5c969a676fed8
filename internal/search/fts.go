package search

import (
	"context"

	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/queryproc"
	"github.com/hyperjump/labnoted/internal/storage"
)

// ftsEngine is the full-text engine: it searches the datastore's token index keyed on
// the preprocessor's keyword query expression and resolves hits back to notes.
type ftsEngine struct {
	index   keyword.KeywordIndex
	storage storage.Storage
}

// search runs FTS for a given (already-analyzed) query expression and returns up to
// limit scored results, snippet-highlighted by the index and resolved to note titles.
func (e *ftsEngine) search(ctx context.Context, analysis queryproc.Analysis, limit int) ([]*scoredResult, error) {
	if analysis.Expression == "" {
		return nil, nil
	}
	hits, err := e.index.Search(ctx, analysis.Expression, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*scoredResult, 0, len(hits))
	for _, h := range hits {
		title := ""
		if note, err := e.storage.GetNote(ctx, h.ID); err == nil && note != nil {
			title = note.Title
		}
		out = append(out, &scoredResult{
			noteID:     h.ID,
			title:      title,
			snippet:    h.Snippet,
			score:      h.Score,
			searchType: models.SearchFTS,
		})
	}
	return out, nil
}
