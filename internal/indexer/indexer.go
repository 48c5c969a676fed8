// Package indexer assembles a note's indexable text, chunks and embeds it, and
// keeps the keyword and vector indices in sync with storage.
package indexer

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hyperjump/labnoted/internal/apperr"
	"github.com/hyperjump/labnoted/internal/embedding"
	"github.com/hyperjump/labnoted/internal/keyword"
	"github.com/hyperjump/labnoted/internal/models"
	"github.com/hyperjump/labnoted/internal/storage"
	"github.com/hyperjump/labnoted/internal/vector"
	"go.uber.org/zap"
)

// BatchResult summarizes an IndexBatch run.
type BatchResult struct {
	Indexed         int
	Skipped         int
	Failed          int
	TotalEmbeddings int
}

// Indexer assembles indexable text for a note, chunks and embeds it, and
// persists the result to storage, the keyword index, and the vector index.
type Indexer struct {
	storage      storage.Storage
	embedder     embedding.Embedder
	vectorIndex  vector.VectorIndex
	keywordIndex keyword.KeywordIndex
	chunker      *embedding.Chunker
	logger       *zap.Logger
}

// New creates an Indexer with the given dependencies.
func New(
	st storage.Storage,
	embedder embedding.Embedder,
	vectorIndex vector.VectorIndex,
	keywordIndex keyword.KeywordIndex,
	chunker *embedding.Chunker,
	logger *zap.Logger,
) *Indexer {
	return &Indexer{
		storage:      st,
		embedder:     embedder,
		vectorIndex:  vectorIndex,
		keywordIndex: keywordIndex,
		chunker:      chunker,
		logger:       logger,
	}
}

// NeedsIndexing reports whether a note has zero persisted embeddings.
func (idx *Indexer) NeedsIndexing(ctx context.Context, noteHandle int64) (bool, error) {
	embeddings, err := idx.storage.GetEmbeddingsByNote(ctx, noteHandle)
	if err != nil {
		return false, fmt.Errorf("check existing embeddings: %w", err)
	}
	return len(embeddings) == 0, nil
}

// Index computes the indexable text for a note, chunks, embeds, and persists it,
// and returns the number of chunks produced. Returns 0 if there is no indexable text.
func (idx *Indexer) Index(ctx context.Context, noteHandle int64) (int, error) {
	note, err := idx.storage.GetNoteByHandle(ctx, noteHandle)
	if err != nil {
		return 0, fmt.Errorf("load note: %w", err)
	}
	attachments, err := idx.storage.GetAttachmentTexts(ctx, noteHandle)
	if err != nil {
		return 0, fmt.Errorf("load attachment texts: %w", err)
	}

	text := assembleIndexableText(note, attachments)
	if strings.TrimSpace(text) == "" {
		if err := idx.storage.ReplaceEmbeddings(ctx, noteHandle, nil); err != nil {
			return 0, fmt.Errorf("clear embeddings: %w", err)
		}
		if err := idx.keywordIndex.Delete(ctx, note.ExternalID); err != nil {
			return 0, fmt.Errorf("clear keyword entry: %w", err)
		}
		return 0, nil
	}

	chunks := idx.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := idx.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, apperr.Embedding(fmt.Errorf("note %s: %w", note.ExternalID, err))
	}

	priorEmbeddings, err := idx.storage.GetEmbeddingsByNote(ctx, noteHandle)
	if err != nil {
		return 0, fmt.Errorf("load prior embeddings: %w", err)
	}
	priorIDs := make([]string, len(priorEmbeddings))
	for i, e := range priorEmbeddings {
		priorIDs[i] = vectorID(noteHandle, e.ChunkIndex)
	}

	embeddings := make([]*models.Embedding, len(chunks))
	ids := make([]string, len(chunks))
	for i, chunkText := range chunks {
		embeddings[i] = &models.Embedding{
			NoteHandle: noteHandle,
			ChunkIndex: i,
			ChunkText:  chunkText,
			Vector:     vectors[i],
		}
		ids[i] = vectorID(noteHandle, i)
	}

	if err := idx.storage.ReplaceEmbeddings(ctx, noteHandle, embeddings); err != nil {
		return 0, fmt.Errorf("persist embeddings: %w", err)
	}
	if len(priorIDs) > 0 {
		if err := idx.vectorIndex.Remove(ctx, priorIDs); err != nil {
			return 0, fmt.Errorf("remove stale vectors: %w", err)
		}
	}
	if err := idx.vectorIndex.Add(ctx, ids, vectors); err != nil {
		return 0, fmt.Errorf("index vectors: %w", err)
	}

	indexableTitle := note.Title
	if err := idx.keywordIndex.Index(ctx, note.ExternalID, indexableTitle, text); err != nil {
		return 0, fmt.Errorf("index keywords: %w", err)
	}

	if idx.logger != nil {
		idx.logger.Debug("note indexed",
			zap.String("note_id", note.ExternalID),
			zap.Int("chunks", len(chunks)),
		)
	}
	return len(chunks), nil
}

// IndexBatch indexes each note handle that NeedsIndexing, skipping the rest.
// Per-item failures are counted but do not abort the batch.
func (idx *Indexer) IndexBatch(ctx context.Context, handles []int64) BatchResult {
	var result BatchResult
	for _, handle := range handles {
		needs, err := idx.NeedsIndexing(ctx, handle)
		if err != nil {
			result.Failed++
			if idx.logger != nil {
				idx.logger.Warn("needs-indexing check failed", zap.Int64("note_handle", handle), zap.Error(err))
			}
			continue
		}
		if !needs {
			result.Skipped++
			continue
		}
		n, err := idx.Index(ctx, handle)
		if err != nil {
			result.Failed++
			if idx.logger != nil {
				idx.logger.Warn("indexing note failed", zap.Int64("note_handle", handle), zap.Error(err))
			}
			continue
		}
		result.Indexed++
		result.TotalEmbeddings += n
	}
	return result
}

// Reindex deletes and re-creates a note's index entries.
func (idx *Indexer) Reindex(ctx context.Context, noteHandle int64) (int, error) {
	if _, err := idx.Delete(ctx, noteHandle); err != nil {
		return 0, err
	}
	return idx.Index(ctx, noteHandle)
}

// Delete removes a note's embeddings, vector entries, and keyword entry.
// Returns the number of embeddings deleted.
func (idx *Indexer) Delete(ctx context.Context, noteHandle int64) (int, error) {
	existing, err := idx.storage.GetEmbeddingsByNote(ctx, noteHandle)
	if err != nil {
		return 0, fmt.Errorf("load embeddings for delete: %w", err)
	}
	ids := make([]string, len(existing))
	for i, e := range existing {
		ids[i] = vectorID(noteHandle, e.ChunkIndex)
	}
	if len(ids) > 0 {
		if err := idx.vectorIndex.Remove(ctx, ids); err != nil {
			return 0, fmt.Errorf("remove vectors: %w", err)
		}
	}
	n, err := idx.storage.DeleteEmbeddingsByNote(ctx, noteHandle)
	if err != nil {
		return 0, fmt.Errorf("delete embeddings: %w", err)
	}
	note, err := idx.storage.GetNoteByHandle(ctx, noteHandle)
	if err == nil {
		_ = idx.keywordIndex.Delete(ctx, note.ExternalID)
	}
	return n, nil
}

func vectorID(noteHandle int64, chunkIndex int) string {
	return strconv.FormatInt(noteHandle, 10) + ":" + strconv.Itoa(chunkIndex)
}

var bboxMarkup = regexp.MustCompile(`!\[\]\(page=\d+,bbox=\[[^\]]*\]\)`)
var excessBlankLines = regexp.MustCompile(`\n{3,}`)

// assembleIndexableText builds the note's indexable text per the documented
// ordering: body (or title fallback), then each completed attachment text
// labeled by kind, then OCR text, then vision descriptions.
func assembleIndexableText(note *models.Note, attachments []*models.AttachmentText) string {
	var parts []string

	body := strings.TrimSpace(note.BodyText)
	if body == "" {
		body = note.Title
	}
	if body != "" {
		parts = append(parts, body)
	}

	for _, a := range attachments {
		if a.Status != models.ExtractionCompleted {
			continue
		}
		if a.IsImage {
			continue // OCR/vision text for images is appended separately below
		}
		label := attachmentLabel(a.Filename, a.MimeType)
		parts = append(parts, fmt.Sprintf("[%s: %s]\n%s", label, a.Filename, a.Text))
	}

	for _, a := range attachments {
		if a.Status != models.ExtractionCompleted || !a.IsImage {
			continue
		}
		if strings.TrimSpace(a.Text) != "" {
			ocr := cleanOCRText(a.Text)
			if ocr != "" {
				parts = append(parts, fmt.Sprintf("[OCR: %s]\n%s", a.Filename, ocr))
			}
		}
	}

	for _, a := range attachments {
		if a.Status != models.ExtractionCompleted || !a.IsImage {
			continue
		}
		if strings.TrimSpace(a.VisionDescription) != "" {
			parts = append(parts, fmt.Sprintf("[Vision: %s]\n%s", a.Filename, a.VisionDescription))
		}
	}

	return strings.Join(parts, "\n---\n")
}

func cleanOCRText(text string) string {
	text = bboxMarkup.ReplaceAllString(text, "")
	text = excessBlankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func attachmentLabel(filename, mimeType string) string {
	ext := strings.ToLower(filename[strings.LastIndex(filename, ".")+1:])
	switch ext {
	case "pdf":
		return "PDF"
	case "docx", "odt", "rtf":
		return "DOCX"
	case "hwp":
		return "HWP"
	default:
		return "FILE"
	}
}
