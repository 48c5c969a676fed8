// Package integration exercises the hybrid search pipeline against real
// SQLite, Bleve, and in-memory vector storage (no mocked stores).
package integration

import (
	"context"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/indexer"
	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/search"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
)

func TestIntegration_Search(t *testing.T) {
	dir := t.TempDir()
	searchCfg := &config.SearchConfig{
		DefaultLimit: 10,
		MaxLimit:     50,
		RRFK:         60,
	}
	embeddingCfg := config.EmbeddingConfig{Dimensions: 16, TokenChunkSize: 200, TokenOverlap: 20, CharChunkSize: 1000, CharOverlap: 100}

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(embeddingCfg.Dimensions)
	defer embedder.Close()

	vecIndex, err := vector.NewMemoryIndex(embeddingCfg.Dimensions)
	if err != nil {
		t.Fatal(err)
	}
	defer vecIndex.Close()

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	logger := zap.NewNop()
	chunker := embedding.NewChunker(embeddingCfg.TokenChunkSize, embeddingCfg.TokenOverlap, embeddingCfg.CharChunkSize, embeddingCfg.CharOverlap)
	engine := search.NewEngine(store, embedder, vecIndex, kwIndex, searchCfg, logger)
	idx := indexer.New(store, embedder, vecIndex, kwIndex, chunker, logger)
	ctx := context.Background()

	notes := []*models.Note{
		{ExternalID: "note-ml", Title: "Machine Learning Notes", BodyText: "Machine learning algorithms learn from data."},
		{ExternalID: "note-search", Title: "Search Techniques", BodyText: "Semantic search uses embeddings to find similar content."},
	}
	for _, n := range notes {
		if err := store.CreateNote(ctx, n); err != nil {
			t.Fatalf("CreateNote(%s): %v", n.ExternalID, err)
		}
		if _, err := idx.Index(ctx, n.Handle); err != nil {
			t.Fatalf("Index(%s): %v", n.ExternalID, err)
		}
	}

	resp, err := engine.Search(ctx, &models.SearchQuery{
		Query: "machine learning", Type: models.SearchHybrid, Limit: 5,
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Total < 1 {
		t.Errorf("expected at least 1 result, got %d", resp.Total)
	}

	var found bool
	for _, r := range resp.Results {
		if r.NoteID == "note-ml" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected note-ml among results, got %+v", resp.Results)
	}
}

func TestIntegration_SearchEmptyQueryRejected(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(8)
	defer embedder.Close()
	vecIndex, err := vector.NewMemoryIndex(8)
	if err != nil {
		t.Fatal(err)
	}
	defer vecIndex.Close()
	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	defer kwIndex.Close()

	engine := search.NewEngine(store, embedder, vecIndex, kwIndex, &config.SearchConfig{DefaultLimit: 10, MaxLimit: 50}, zap.NewNop())

	if _, err := engine.Search(context.Background(), &models.SearchQuery{Query: ""}); err == nil {
		t.Error("expected error for empty query")
	}
}
