package e2e

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/labnoted/internal/config"
	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/extract"
	"github.com/hyperjump/labnoted/internal/fileid"
	"github.com/hyperjump/labnoted/internal/indexer"
	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/search"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
)

const (
	e2eSearchLimit = 30
	e2eDimensions  = 4
)

func newE2EStack(t *testing.T, dir string) (storage.Storage, *search.Engine, *indexer.Indexer) {
	t.Helper()
	searchCfg := &config.SearchConfig{DefaultLimit: e2eSearchLimit, MaxLimit: 100, RRFK: 60}

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })

	embedder := embedding.NewMockEmbedder(e2eDimensions)
	t.Cleanup(func() { _ = embedder.Close() })

	vecIndex, err := vector.NewMemoryIndex(e2eDimensions)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = vecIndex.Close() })

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	logger := zap.NewNop()
	chunker := embedding.NewChunker(64, 8, 1000, 100)
	engine := search.NewEngine(store, embedder, vecIndex, kwIndex, searchCfg, logger)
	idx := indexer.New(store, embedder, vecIndex, kwIndex, chunker, logger)
	return store, engine, idx
}

// TestE2E_SearchReturnsCorrectResults indexes the full synthetic corpus as notes
// and checks every query test case surfaces its expected note among the results.
func TestE2E_SearchReturnsCorrectResults(t *testing.T) {
	dir := t.TempDir()
	store, engine, idx := newE2EStack(t, dir)
	ctx := context.Background()

	corpus := BuildCorpus()
	if corpus.TotalDocs == 0 {
		t.Fatal("corpus has no documents")
	}
	if corpus.TotalQueries == 0 {
		t.Fatal("corpus has no query test cases")
	}

	for _, d := range corpus.Documents {
		note := &models.Note{ExternalID: d.ID, Title: d.Title, BodyText: d.Content}
		if err := store.CreateNote(ctx, note); err != nil {
			t.Fatalf("create note %q: %v", d.ID, err)
		}
		if _, err := idx.Index(ctx, note.Handle); err != nil {
			t.Fatalf("index note %q: %v", d.ID, err)
		}
	}

	t.Logf("indexed %d notes; running %d query test cases", corpus.TotalDocs, corpus.TotalQueries)

	for _, tc := range corpus.TestCases {
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := engine.Search(ctx, &models.SearchQuery{
				Query: tc.Query, Type: models.SearchHybrid, Limit: e2eSearchLimit,
			})
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			resultIDs := documentIDsFromResponse(resp)
			if !containsAny(resultIDs, tc.ExpectedDocIDs) {
				t.Errorf("query %q: expected at least one of %v in results, got %d results (ids: %v)",
					tc.Query, tc.ExpectedDocIDs, len(resultIDs), resultIDs)
			}
		})
	}
}

func documentIDsFromResponse(resp *models.SearchResponse) []string {
	ids := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		ids = append(ids, r.NoteID)
	}
	return ids
}

func containsAny(got []string, expected []string) bool {
	set := make(map[string]bool)
	for _, id := range got {
		set[id] = true
	}
	for _, id := range expected {
		if set[id] {
			return true
		}
	}
	return false
}

// TestE2E_AttachmentFileIndexingSearch writes real files of every supported extension
// (.txt, .md, .rst, .docx, .xlsx, .pptx, .odp, .ods) to disk, extracts each with
// internal/extract, attaches the extracted text to a note keyed by a deterministic
// fileid.FileDocID, indexes it, and runs the corpus query test cases against the result.
func TestE2E_AttachmentFileIndexingSearch(t *testing.T) {
	dir := t.TempDir()
	docDir := filepath.Join(dir, "docs")
	if err := os.MkdirAll(docDir, 0755); err != nil {
		t.Fatal(err)
	}

	store, engine, idx := newE2EStack(t, dir)
	extractor := extract.NewExtractor()
	ctx := context.Background()

	corpus := BuildCorpus()
	exts := SupportedFileExtensions
	corpusIDToExternalID := make(map[string]string)
	nFiles := 0
	for i, d := range corpus.Documents {
		if nFiles >= 50 {
			break
		}
		ext := exts[i%len(exts)]
		name := d.ID + ext
		path := filepath.Join(docDir, name)
		fileBytes, err := WriteMinimalFile(ext, d.Content)
		if err != nil {
			t.Fatalf("write minimal file %s: %v", name, err)
		}
		if err := os.WriteFile(path, fileBytes, 0644); err != nil {
			t.Fatalf("write file %s: %v", path, err)
		}
		absPath, _ := filepath.Abs(path)
		externalID := fileid.FileDocID(absPath)
		corpusIDToExternalID[d.ID] = externalID

		text, err := extractor.Extract(path)
		if err != nil {
			t.Fatalf("extract %s: %v", path, err)
		}
		note := &models.Note{ExternalID: externalID, Title: d.Title}
		if err := store.CreateNote(ctx, note); err != nil {
			t.Fatalf("create note for %s: %v", path, err)
		}
		if err := store.ReplaceAttachmentTexts(ctx, note.Handle, []*models.AttachmentText{
			{Filename: name, Text: text, Status: models.ExtractionCompleted},
		}); err != nil {
			t.Fatalf("replace attachment texts for %s: %v", path, err)
		}
		if _, err := idx.Index(ctx, note.Handle); err != nil {
			t.Fatalf("index note for %s: %v", path, err)
		}
		nFiles++
	}

	t.Logf("indexed %d attachment-backed notes from %s; running query test cases", nFiles, docDir)

	var run int
	for _, tc := range corpus.TestCases {
		expectedIDs := make([]string, 0)
		for _, corpusID := range tc.ExpectedDocIDs {
			if externalID, ok := corpusIDToExternalID[corpusID]; ok {
				expectedIDs = append(expectedIDs, externalID)
			}
		}
		if len(expectedIDs) == 0 {
			continue
		}
		run++
		t.Run(tc.Description, func(t *testing.T) {
			resp, err := engine.Search(ctx, &models.SearchQuery{
				Query: tc.Query, Type: models.SearchHybrid, Limit: e2eSearchLimit,
			})
			if err != nil {
				t.Fatalf("search failed: %v", err)
			}
			resultIDs := documentIDsFromResponse(resp)
			if !containsAny(resultIDs, expectedIDs) {
				t.Errorf("query %q: expected at least one of %v in results, got %d results (sample ids: %v)",
					tc.Query, expectedIDs, len(resultIDs), resultIDs)
			}
		})
	}
	if run == 0 {
		t.Fatal("no query test cases matched the file-based corpus")
	}
	t.Logf("ran %d query test cases for attachment-based index", run)
}
