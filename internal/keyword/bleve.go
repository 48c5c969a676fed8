// Package keyword provides a Bleve implementation of KeywordIndex over note text.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/search/highlight/highlighter/html"
)

// noteDoc is what gets indexed in Bleve for each note.
type noteDoc struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// BleveIndex implements KeywordIndex using Bleve, keyed by note external ID.
type BleveIndex struct {
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path.
// If the path already exists, the existing index is opened and reused.
// If the mapping changes in code, remove the index directory to force a full re-index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) keeps morphemes from the
	// query preprocessor matching literally instead of being stemmed a second time.
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)
	docMapping.AddFieldMappingsAt("title", textFieldMapping)
	im.AddDocumentMapping("note", docMapping)
	im.DefaultType = "note"
	im.DefaultMapping = docMapping

	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return &BleveIndex{index: index}, nil
	}

	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return &BleveIndex{index: index}, nil
}

// Index indexes (or reindexes) a note's title and indexable body text by external ID.
func (b *BleveIndex) Index(ctx context.Context, id string, title, content string) error {
	return b.index.Index(id, &noteDoc{Title: title, Content: content})
}

// Search runs the keyword query expression against title and content, merging scores
// with a title boost, and returns hits with a snippet highlighting matched tokens.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int) ([]*KeywordResult, error) {
	const titleBoost = 10.0
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}

	titleQuery := bleve.NewMatchQuery(query)
	titleQuery.SetField("title")
	titleReq := bleve.NewSearchRequest(titleQuery)
	titleReq.Size = reqSize

	contentQuery := bleve.NewMatchQuery(query)
	contentQuery.SetField("content")
	contentReq := bleve.NewSearchRequest(contentQuery)
	contentReq.Size = reqSize
	contentReq.Highlight = bleve.NewHighlightWithStyle(html.Name)
	contentReq.Highlight.AddField("content")

	titleResults, err := b.index.Search(titleReq)
	if err != nil {
		return nil, fmt.Errorf("bleve title search failed: %w", err)
	}
	contentResults, err := b.index.Search(contentReq)
	if err != nil {
		return nil, fmt.Errorf("bleve content search failed: %w", err)
	}

	titleScores := make(map[string]float64)
	for _, hit := range titleResults.Hits {
		titleScores[hit.ID] = hit.Score * titleBoost
	}
	contentScores := make(map[string]float64)
	snippets := make(map[string]string)
	for _, hit := range contentResults.Hits {
		contentScores[hit.ID] = hit.Score
		if frags := hit.Fragments["content"]; len(frags) > 0 {
			snippets[hit.ID] = strings.Join(frags, " … ")
		}
	}

	allIDs := make(map[string]struct{}, len(titleScores)+len(contentScores))
	for id := range titleScores {
		allIDs[id] = struct{}{}
	}
	for id := range contentScores {
		allIDs[id] = struct{}{}
	}

	out := make([]*KeywordResult, 0, len(allIDs))
	for id := range allIDs {
		out = append(out, &KeywordResult{
			ID:      id,
			Score:   titleScores[id] + contentScores[id],
			Snippet: snippets[id],
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Delete removes a note from the index.
func (b *BleveIndex) Delete(ctx context.Context, id string) error {
	return b.index.Delete(id)
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	return b.index.Close()
}

// DocCount returns the total number of notes in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	return b.index.DocCount()
}
