// Package models defines the core data structures shared across the search and AI routing core:
// notes, embeddings, attachment text, search/AI telemetry, OAuth tokens, and provider model info.
package models

import "time"

// Note is the canonical text record the rest of the system indexes and searches.
// ExternalID is the immutable identity assigned by the upstream note repository;
// Handle is the internal numeric handle used by owned tables (embeddings, attachment texts).
type Note struct {
	Handle       int64     `json:"-" db:"handle"`
	ExternalID   string    `json:"id" db:"external_id"`
	Title        string    `json:"title" db:"title"`
	BodyHTML     string    `json:"body_html,omitempty" db:"body_html"`
	BodyText     string    `json:"body_text" db:"body_text"`
	NotebookID   string    `json:"notebook_id,omitempty" db:"notebook_id"`
	Tags         []string  `json:"tags,omitempty" db:"-"`
	SourceUpdatedAt time.Time `json:"source_updated_at" db:"source_updated_at"`
	SyncedAt     time.Time `json:"synced_at" db:"synced_at"`
}

// Embedding is a semantic fingerprint of one chunk of a note's indexable text.
type Embedding struct {
	ID         int64     `json:"-" db:"id"`
	NoteHandle int64     `json:"-" db:"note_handle"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	ChunkText  string    `json:"chunk_text" db:"chunk_text"`
	Vector     []float32 `json:"-" db:"vector"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ExtractionStatus is the lifecycle state of an AttachmentText extraction.
type ExtractionStatus string

const (
	ExtractionPending   ExtractionStatus = "pending"
	ExtractionCompleted ExtractionStatus = "completed"
	ExtractionEmpty     ExtractionStatus = "empty"
	ExtractionFailed    ExtractionStatus = "failed"
)

// AttachmentText is text extracted from a non-note artifact attached to a note
// (PDF, document, spreadsheet, or image OCR/vision description).
type AttachmentText struct {
	ID                int64            `json:"-" db:"id"`
	NoteHandle        int64            `json:"-" db:"note_handle"`
	Filename          string           `json:"filename" db:"filename"`
	MimeType          string           `json:"mime_type" db:"mime_type"`
	Text              string           `json:"text" db:"text"`
	Status            ExtractionStatus `json:"status" db:"status"`
	VisionDescription string           `json:"vision_description,omitempty" db:"vision_description"`
	IsImage           bool             `json:"is_image" db:"is_image"`
}

// SearchEvent records one retrieval observation, written fire-and-forget after each query.
type SearchEvent struct {
	ID             int64     `json:"id" db:"id"`
	UserHandle     *string   `json:"user_handle,omitempty" db:"user_handle"`
	Query          string    `json:"query" db:"query"`
	SearchType     string    `json:"search_type" db:"search_type"`
	ResultCount    int       `json:"result_count" db:"result_count"`
	LatencyMS      int64     `json:"latency_ms" db:"latency_ms"`
	JudgeRanSemantic bool    `json:"judge_ran_semantic" db:"judge_ran_semantic"`
	ClickedNoteID  *string   `json:"clicked_note_id,omitempty" db:"clicked_note_id"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SearchFeedback is a user relevance signal on a (search event, note) pair.
// Unique per (EventID, NoteID, UserHandle).
type SearchFeedback struct {
	ID         int64  `json:"id" db:"id"`
	EventID    int64  `json:"event_id" db:"event_id"`
	NoteID     string `json:"note_id" db:"note_id"`
	UserHandle string `json:"user_handle" db:"user_handle"`
	Relevant   bool   `json:"relevant" db:"relevant"`
}

// AIFeedback is a star rating on a generated AI answer.
type AIFeedback struct {
	ID             int64     `json:"id" db:"id"`
	Feature        string    `json:"feature" db:"feature"`
	Rating         int       `json:"rating" db:"rating"`
	Comment        string    `json:"comment,omitempty" db:"comment"`
	Model          string    `json:"model" db:"model"`
	RequestSummary string    `json:"request_summary,omitempty" db:"request_summary"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// OAuthTokenRecord is a per (user, provider) stored OAuth credential.
// AccessToken and RefreshToken are encrypted at rest when a token encryption key is configured.
type OAuthTokenRecord struct {
	ID            int64      `json:"-" db:"id"`
	UserHandle    string     `json:"-" db:"user_handle"`
	Provider      string     `json:"provider" db:"provider"`
	AccessToken   string     `json:"-" db:"access_token"`
	RefreshToken  string     `json:"-" db:"refresh_token"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty" db:"expires_at"`
	PKCEVerifier  string     `json:"-" db:"pkce_verifier"`
	Scope         string     `json:"-" db:"scope"`
	Email         string     `json:"email,omitempty" db:"email"`
	AccountID     string     `json:"-" db:"account_id"`
}

// ModelInfo describes a single model a provider exposes to the registry.
type ModelInfo struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Provider          string `json:"provider"`
	MaxTokens         int    `json:"max_tokens"`
	SupportsStreaming bool   `json:"supports_streaming"`
}
