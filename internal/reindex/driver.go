// Package reindex implements the background embedding index driver: a process-wide
// singleton that walks notes with no embeddings and indexes them in small batches,
// reporting progress for polling clients.
package reindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/indexer"
	"github.com/hyperjump/labnoted/internal/storage"
)

// Status is the lifecycle state of the index driver.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusIndexing  Status = "indexing"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

const batchSize = 5

const interBatchSleep = 500 * time.Millisecond

// Progress is the singleton's current state, safe to copy and return to callers.
type Progress struct {
	Status       Status
	Total        int
	Indexed      int
	Failed       int
	ErrorMessage string
}

// Driver runs background re-indexing and tracks progress for one process.
type Driver struct {
	storage storage.Storage
	indexer *indexer.Indexer
	logger  *zap.Logger

	mu       sync.Mutex
	progress Progress
}

// New builds a Driver over storage and indexer.
func New(st storage.Storage, idx *indexer.Indexer, logger *zap.Logger) *Driver {
	return &Driver{
		storage: st,
		indexer: idx,
		logger:  logger,
		progress: Progress{
			Status: StatusIdle,
		},
	}
}

// Progress returns a snapshot of the current state.
func (d *Driver) Progress() Progress {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.progress
}

// Start kicks off a background re-index run if one is not already in progress.
// Returns (started=false) without error if a run is already indexing.
func (d *Driver) Start(ctx context.Context) (bool, error) {
	d.mu.Lock()
	if d.progress.Status == StatusIndexing {
		d.mu.Unlock()
		return false, nil
	}
	d.progress = Progress{Status: StatusIndexing}
	d.mu.Unlock()

	go d.run(ctx)
	return true, nil
}

func (d *Driver) run(ctx context.Context) {
	handles, err := d.storage.ListNoteHandlesNeedingIndex(ctx)
	if err != nil {
		d.finishWithError(fmt.Sprintf("list notes needing index: %v", err))
		return
	}

	d.mu.Lock()
	d.progress.Total = len(handles)
	d.mu.Unlock()

	for i := 0; i < len(handles); i += batchSize {
		end := i + batchSize
		if end > len(handles) {
			end = len(handles)
		}
		batch := handles[i:end]

		result := d.indexer.IndexBatch(ctx, batch)

		d.mu.Lock()
		d.progress.Indexed += result.Indexed + result.Skipped
		d.progress.Failed += result.Failed
		d.mu.Unlock()

		if d.logger != nil {
			d.logger.Info("reindex batch complete",
				zap.Int("batch_start", i),
				zap.Int("indexed", result.Indexed),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed),
			)
		}

		if end < len(handles) {
			select {
			case <-ctx.Done():
				d.finishWithError("cancelled before completion")
				return
			case <-time.After(interBatchSleep):
			}
		}
	}

	d.mu.Lock()
	d.progress.Status = StatusCompleted
	d.mu.Unlock()
}

func (d *Driver) finishWithError(msg string) {
	if d.logger != nil {
		d.logger.Error("reindex run failed", zap.String("error", msg))
	}
	d.mu.Lock()
	d.progress.Status = StatusError
	d.progress.ErrorMessage = msg
	d.mu.Unlock()
}

// ErrAlreadyIndexing is returned by callers that want to distinguish a refused
// start from an actual failure; Start itself reports this via its bool return.
var ErrAlreadyIndexing = apperr.ConflictBusy("reindex already in progress")
