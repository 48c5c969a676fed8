package keyword

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestBleveIndex_SearchFindsContent(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	noteID := "note:abc123"
	title := "Ausvet Monthly Report 17 - May 2023"
	content := "This report mentions Omnisyan and other findings. The Bayes app is also referenced."

	if err := idx.Index(ctx, noteID, title, content); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "Omnisyan", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one keyword result for \"Omnisyan\" in note content")
	}
	if results[0].ID != noteID {
		t.Errorf("first result ID = %q, want %q", results[0].ID, noteID)
	}
	if results[0].Snippet == "" {
		t.Error("expected a highlighted snippet for a content match")
	}

	// Standard analyzer (no stemming) so "bayes" matches "Bayes" in content
	results2, err := idx.Search(ctx, "bayes", 10)
	if err != nil {
		t.Fatalf("Search bayes: %v", err)
	}
	if len(results2) == 0 {
		t.Fatal("expected at least one keyword result for \"bayes\" in note content (standard analyzer, no stemming)")
	}
	if results2[0].ID != noteID {
		t.Errorf("first result ID = %q, want %q", results2[0].ID, noteID)
	}
}

func TestBleveIndex_SearchFindsTitle(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	noteID := "note:xyz"
	title := "Ausvet Monthly Report 17 - May 2023"
	content := "Some body text."

	if err := idx.Index(ctx, noteID, title, content); err != nil {
		t.Fatalf("Index: %v", err)
	}

	results, err := idx.Search(ctx, "Report", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected at least one keyword result for \"Report\" in title")
	}
	if results[0].ID != noteID {
		t.Errorf("first result ID = %q, want %q", results[0].ID, noteID)
	}
	// A title-only match still yields a positive (title-boosted) score.
	if results[0].Score <= 0 {
		t.Errorf("expected positive boosted score for title match, got %f", results[0].Score)
	}
}

func TestBleveIndex_OpenExistingPreservesData(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx1, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	ctx := context.Background()
	if err := idx1.Index(ctx, "note1", "T", "uniqueword"); err != nil {
		t.Fatalf("Index: %v", err)
	}
	if err := idx1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	idx2, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex (open existing): %v", err)
	}
	defer func() {
		_ = idx2.Close()
	}()

	results, err := idx2.Search(ctx, "uniqueword", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Errorf("expected 1 result after reopening an existing index, got %d", len(results))
	}
}

func TestBleveIndex_Delete(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	if err := idx.Index(ctx, "note1", "T", "onlyinnote1"); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if err := idx.Delete(ctx, "note1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	results, err := idx.Search(ctx, "onlyinnote1", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected 0 results after delete, got %d", len(results))
	}
}

func TestBleveIndex_DocCount(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	defer func() {
		_ = idx.Close()
	}()

	ctx := context.Background()
	for i, id := range []string{"note1", "note2", "note3"} {
		if err := idx.Index(ctx, id, "title", "content body"); err != nil {
			t.Fatalf("Index %d: %v", i, err)
		}
	}

	count, err := idx.DocCount()
	if err != nil {
		t.Fatalf("DocCount: %v", err)
	}
	if count != 3 {
		t.Errorf("DocCount() = %d, want 3", count)
	}
}

func TestNewBleveIndex_createsDir(t *testing.T) {
	dir := t.TempDir()
	indexPath := filepath.Join(dir, "sub", "bleve")

	idx, err := NewBleveIndex(indexPath)
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	_ = idx.Close()

	if _, err := os.Stat(indexPath); err != nil {
		t.Errorf("index path should exist: %v", err)
	}
}
