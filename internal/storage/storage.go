// Package storage defines the persistence interface for notes, embeddings,
// attachment texts, search/AI telemetry, and OAuth token records.
package storage

import (
	"context"

	"github.com/hyperjump/labnoted/internal/models"
)

// Storage defines all persistence operations the core relies on.
type Storage interface {
	// Notes
	CreateNote(ctx context.Context, note *models.Note) error
	GetNote(ctx context.Context, externalID string) (*models.Note, error)
	GetNoteByHandle(ctx context.Context, handle int64) (*models.Note, error)
	UpdateNote(ctx context.Context, note *models.Note) error
	DeleteNote(ctx context.Context, externalID string) error
	ListNotes(ctx context.Context, offset, limit int) ([]*models.Note, error)
	ListNoteHandlesNeedingIndex(ctx context.Context) ([]int64, error)
	CountNotes(ctx context.Context) (int64, error)

	// Embeddings
	ReplaceEmbeddings(ctx context.Context, noteHandle int64, embeddings []*models.Embedding) error
	GetEmbeddingsByNote(ctx context.Context, noteHandle int64) ([]*models.Embedding, error)
	DeleteEmbeddingsByNote(ctx context.Context, noteHandle int64) (int, error)
	AllEmbeddings(ctx context.Context) ([]*models.Embedding, error)
	CountEmbeddings(ctx context.Context) (int64, error)

	// Attachment texts
	ReplaceAttachmentTexts(ctx context.Context, noteHandle int64, texts []*models.AttachmentText) error
	GetAttachmentTexts(ctx context.Context, noteHandle int64) ([]*models.AttachmentText, error)

	// Search telemetry
	RecordSearchEvent(ctx context.Context, event *models.SearchEvent) error
	RecordSearchFeedback(ctx context.Context, fb *models.SearchFeedback) error
	RecordAIFeedback(ctx context.Context, fb *models.AIFeedback) error

	// OAuth tokens
	UpsertOAuthToken(ctx context.Context, rec *models.OAuthTokenRecord) error
	GetOAuthToken(ctx context.Context, userHandle, provider string) (*models.OAuthTokenRecord, error)
	DeleteOAuthToken(ctx context.Context, userHandle, provider string) error

	Close() error
}
