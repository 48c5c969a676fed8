package reindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/indexer"
	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
)

func newTestDriver(t *testing.T) (*Driver, storage.Storage) {
	t.Helper()
	dir := t.TempDir()

	st, err := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStorage: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	vecIndex, err := vector.NewMemoryIndex(16)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	t.Cleanup(func() { _ = vecIndex.Close() })

	kwIndex, err := keyword.NewBleveIndex(filepath.Join(dir, "bleve"))
	if err != nil {
		t.Fatalf("NewBleveIndex: %v", err)
	}
	t.Cleanup(func() { _ = kwIndex.Close() })

	embedder := embedding.NewMockEmbedder(16)
	chunker := embedding.NewChunker(500, 50, 2000, 200)
	idx := indexer.New(st, embedder, vecIndex, kwIndex, chunker, nil)

	return New(st, idx, nil), st
}

func createNote(t *testing.T, st storage.Storage, externalID, body string) {
	t.Helper()
	note := &models.Note{ExternalID: externalID, Title: externalID, BodyText: body}
	if err := st.CreateNote(context.Background(), note); err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
}

func waitForTerminal(t *testing.T, d *Driver) Progress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		p := d.Progress()
		if p.Status == StatusCompleted || p.Status == StatusError {
			return p
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("reindex run did not reach a terminal state in time")
	return Progress{}
}

func TestDriverIndexesAllNotesNeedingEmbeddings(t *testing.T) {
	d, st := newTestDriver(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		createNote(t, st, string(rune('a'+i)), "some body text to embed")
	}

	started, err := d.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !started {
		t.Fatal("expected Start to begin a run")
	}

	final := waitForTerminal(t, d)
	if final.Status != StatusCompleted {
		t.Fatalf("expected completed, got %+v", final)
	}
	if final.Total != 12 {
		t.Fatalf("expected total 12, got %d", final.Total)
	}
	if final.Indexed != 12 {
		t.Fatalf("expected all 12 indexed, got %d", final.Indexed)
	}
}

func TestDriverRefusesConcurrentStart(t *testing.T) {
	d, st := newTestDriver(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		createNote(t, st, string(rune('a'+i)), "body text")
	}

	started, err := d.Start(ctx)
	if err != nil || !started {
		t.Fatalf("first Start should begin: started=%v err=%v", started, err)
	}

	started, err = d.Start(ctx)
	if err != nil {
		t.Fatalf("second Start should not error: %v", err)
	}
	if started {
		t.Fatal("expected second Start to be refused while indexing")
	}

	waitForTerminal(t, d)
}

func TestDriverIdleBeforeFirstRun(t *testing.T) {
	d, _ := newTestDriver(t)
	if got := d.Progress().Status; got != StatusIdle {
		t.Fatalf("expected idle, got %s", got)
	}
}
