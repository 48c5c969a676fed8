// Package storage provides the SQLite implementation of the Storage interface.
package storage

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/labnoted/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS notes (
		handle INTEGER PRIMARY KEY AUTOINCREMENT,
		external_id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL DEFAULT '',
		body_html TEXT NOT NULL DEFAULT '',
		body_text TEXT NOT NULL DEFAULT '',
		notebook_id TEXT NOT NULL DEFAULT '',
		tags TEXT NOT NULL DEFAULT '[]',
		source_updated_at TIMESTAMP,
		synced_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_notes_external_id ON notes(external_id);

	CREATE TABLE IF NOT EXISTS embeddings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_handle INTEGER NOT NULL,
		chunk_index INTEGER NOT NULL,
		chunk_text TEXT NOT NULL,
		vector BLOB NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (note_handle) REFERENCES notes(handle) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_embeddings_note ON embeddings(note_handle);

	CREATE TABLE IF NOT EXISTS attachment_texts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		note_handle INTEGER NOT NULL,
		filename TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		vision_description TEXT NOT NULL DEFAULT '',
		is_image INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (note_handle) REFERENCES notes(handle) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_attachments_note ON attachment_texts(note_handle);

	CREATE TABLE IF NOT EXISTS search_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_handle TEXT,
		query TEXT NOT NULL,
		search_type TEXT NOT NULL,
		result_count INTEGER NOT NULL,
		latency_ms INTEGER NOT NULL,
		judge_ran_semantic INTEGER NOT NULL DEFAULT 0,
		clicked_note_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS search_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		event_id INTEGER NOT NULL,
		note_id TEXT NOT NULL,
		user_handle TEXT NOT NULL,
		relevant INTEGER NOT NULL,
		UNIQUE(event_id, note_id, user_handle)
	);

	CREATE TABLE IF NOT EXISTS ai_feedback (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		feature TEXT NOT NULL,
		rating INTEGER NOT NULL,
		comment TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL,
		request_summary TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS oauth_tokens (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_handle TEXT NOT NULL,
		provider TEXT NOT NULL,
		access_token TEXT NOT NULL,
		refresh_token TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMP,
		pkce_verifier TEXT NOT NULL DEFAULT '',
		scope TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		account_id TEXT NOT NULL DEFAULT '',
		UNIQUE(user_handle, provider)
	);
	`
	_, err := db.Exec(schema)
	return err
}

// encodeVector serializes a float32 vector to a little-endian byte blob.
func encodeVector(v []float32) []byte {
	buf := new(bytes.Buffer)
	buf.Grow(len(v) * 4)
	for _, f := range v {
		_ = binary.Write(buf, binary.LittleEndian, f)
	}
	return buf.Bytes()
}

func decodeVector(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	r := bytes.NewReader(b)
	for i := 0; i < n; i++ {
		_ = binary.Read(r, binary.LittleEndian, &out[i])
	}
	return out
}

// -- Notes -------------------------------------------------------------------

func (s *SQLiteStorage) CreateNote(ctx context.Context, note *models.Note) error {
	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	note.SyncedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notes (external_id, title, body_html, body_text, notebook_id, tags, source_updated_at, synced_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		note.ExternalID, note.Title, note.BodyHTML, note.BodyText, note.NotebookID, string(tagsJSON), note.SourceUpdatedAt, note.SyncedAt,
	)
	if err != nil {
		return err
	}
	note.Handle, err = res.LastInsertId()
	return err
}

func scanNote(row interface {
	Scan(dest ...any) error
}) (*models.Note, error) {
	var n models.Note
	var tagsJSON string
	var sourceUpdated sql.NullTime
	err := row.Scan(&n.Handle, &n.ExternalID, &n.Title, &n.BodyHTML, &n.BodyText, &n.NotebookID, &tagsJSON, &sourceUpdated, &n.SyncedAt)
	if err != nil {
		return nil, err
	}
	if sourceUpdated.Valid {
		n.SourceUpdatedAt = sourceUpdated.Time
	}
	_ = json.Unmarshal([]byte(tagsJSON), &n.Tags)
	return &n, nil
}

const noteColumns = `handle, external_id, title, body_html, body_text, notebook_id, tags, source_updated_at, synced_at`

func (s *SQLiteStorage) GetNote(ctx context.Context, externalID string) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE external_id = ?`, externalID)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note not found: %s", externalID)
	}
	return n, err
}

func (s *SQLiteStorage) GetNoteByHandle(ctx context.Context, handle int64) (*models.Note, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE handle = ?`, handle)
	n, err := scanNote(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("note not found: handle %d", handle)
	}
	return n, err
}

func (s *SQLiteStorage) UpdateNote(ctx context.Context, note *models.Note) error {
	tagsJSON, err := json.Marshal(note.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	note.SyncedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`UPDATE notes SET title = ?, body_html = ?, body_text = ?, notebook_id = ?, tags = ?, source_updated_at = ?, synced_at = ?
		 WHERE external_id = ?`,
		note.Title, note.BodyHTML, note.BodyText, note.NotebookID, string(tagsJSON), note.SourceUpdatedAt, note.SyncedAt, note.ExternalID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("note not found: %s", note.ExternalID)
	}
	return nil
}

func (s *SQLiteStorage) DeleteNote(ctx context.Context, externalID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM notes WHERE external_id = ?`, externalID)
	return err
}

func (s *SQLiteStorage) ListNotes(ctx context.Context, offset, limit int) ([]*models.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+noteColumns+` FROM notes ORDER BY synced_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notes []*models.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *SQLiteStorage) ListNoteHandlesNeedingIndex(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.handle FROM notes n LEFT JOIN embeddings e ON e.note_handle = n.handle
		 WHERE e.id IS NULL GROUP BY n.handle`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var handles []int64
	for rows.Next() {
		var h int64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, rows.Err()
}

func (s *SQLiteStorage) CountNotes(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes`).Scan(&count)
	return count, err
}

// -- Embeddings ---------------------------------------------------------------

// ReplaceEmbeddings deletes any existing embeddings for noteHandle and inserts the
// given ones, all within one transaction, implementing the delete-then-insert
// re-index concurrency policy.
func (s *SQLiteStorage) ReplaceEmbeddings(ctx context.Context, noteHandle int64, embeddings []*models.Embedding) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM embeddings WHERE note_handle = ?`, noteHandle); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO embeddings (note_handle, chunk_index, chunk_text, vector, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range embeddings {
		e.NoteHandle = noteHandle
		e.CreatedAt = now
		if _, err := stmt.ExecContext(ctx, noteHandle, e.ChunkIndex, e.ChunkText, encodeVector(e.Vector), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) GetEmbeddingsByNote(ctx context.Context, noteHandle int64) ([]*models.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_handle, chunk_index, chunk_text, vector, created_at FROM embeddings
		 WHERE note_handle = ? ORDER BY chunk_index`, noteHandle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmbeddings(rows)
}

func (s *SQLiteStorage) DeleteEmbeddingsByNote(ctx context.Context, noteHandle int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE note_handle = ?`, noteHandle)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *SQLiteStorage) AllEmbeddings(ctx context.Context) ([]*models.Embedding, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_handle, chunk_index, chunk_text, vector, created_at FROM embeddings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEmbeddings(rows)
}

func scanEmbeddings(rows *sql.Rows) ([]*models.Embedding, error) {
	var out []*models.Embedding
	for rows.Next() {
		var e models.Embedding
		var blob []byte
		if err := rows.Scan(&e.ID, &e.NoteHandle, &e.ChunkIndex, &e.ChunkText, &blob, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Vector = decodeVector(blob)
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *SQLiteStorage) CountEmbeddings(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM embeddings`).Scan(&count)
	return count, err
}

// -- Attachment texts -----------------------------------------------------------

func (s *SQLiteStorage) ReplaceAttachmentTexts(ctx context.Context, noteHandle int64, texts []*models.AttachmentText) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM attachment_texts WHERE note_handle = ?`, noteHandle); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO attachment_texts (note_handle, filename, mime_type, text, status, vision_description, is_image)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range texts {
		t.NoteHandle = noteHandle
		isImage := 0
		if t.IsImage {
			isImage = 1
		}
		if _, err := stmt.ExecContext(ctx, noteHandle, t.Filename, t.MimeType, t.Text, string(t.Status), t.VisionDescription, isImage); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStorage) GetAttachmentTexts(ctx context.Context, noteHandle int64) ([]*models.AttachmentText, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, note_handle, filename, mime_type, text, status, vision_description, is_image
		 FROM attachment_texts WHERE note_handle = ?`, noteHandle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.AttachmentText
	for rows.Next() {
		var t models.AttachmentText
		var status string
		var isImage int
		if err := rows.Scan(&t.ID, &t.NoteHandle, &t.Filename, &t.MimeType, &t.Text, &status, &t.VisionDescription, &isImage); err != nil {
			return nil, err
		}
		t.Status = models.ExtractionStatus(status)
		t.IsImage = isImage != 0
		out = append(out, &t)
	}
	return out, rows.Err()
}

// -- Search telemetry ------------------------------------------------------------

func (s *SQLiteStorage) RecordSearchEvent(ctx context.Context, event *models.SearchEvent) error {
	judgeRan := 0
	if event.JudgeRanSemantic {
		judgeRan = 1
	}
	event.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO search_events (user_handle, query, search_type, result_count, latency_ms, judge_ran_semantic, clicked_note_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.UserHandle, event.Query, event.SearchType, event.ResultCount, event.LatencyMS, judgeRan, event.ClickedNoteID, event.CreatedAt)
	if err != nil {
		return err
	}
	event.ID, err = res.LastInsertId()
	return err
}

func (s *SQLiteStorage) RecordSearchFeedback(ctx context.Context, fb *models.SearchFeedback) error {
	relevant := 0
	if fb.Relevant {
		relevant = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO search_feedback (event_id, note_id, user_handle, relevant) VALUES (?, ?, ?, ?)
		 ON CONFLICT(event_id, note_id, user_handle) DO UPDATE SET relevant = excluded.relevant`,
		fb.EventID, fb.NoteID, fb.UserHandle, relevant)
	return err
}

func (s *SQLiteStorage) RecordAIFeedback(ctx context.Context, fb *models.AIFeedback) error {
	fb.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO ai_feedback (feature, rating, comment, model, request_summary, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		fb.Feature, fb.Rating, fb.Comment, fb.Model, fb.RequestSummary, fb.CreatedAt)
	if err != nil {
		return err
	}
	fb.ID, err = res.LastInsertId()
	return err
}

// -- OAuth tokens ------------------------------------------------------------------

func (s *SQLiteStorage) UpsertOAuthToken(ctx context.Context, rec *models.OAuthTokenRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO oauth_tokens (user_handle, provider, access_token, refresh_token, expires_at, pkce_verifier, scope, email, account_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_handle, provider) DO UPDATE SET
		   access_token = excluded.access_token,
		   refresh_token = excluded.refresh_token,
		   expires_at = excluded.expires_at,
		   pkce_verifier = excluded.pkce_verifier,
		   scope = excluded.scope,
		   email = excluded.email,
		   account_id = excluded.account_id`,
		rec.UserHandle, rec.Provider, rec.AccessToken, rec.RefreshToken, rec.ExpiresAt, rec.PKCEVerifier, rec.Scope, rec.Email, rec.AccountID)
	return err
}

func (s *SQLiteStorage) GetOAuthToken(ctx context.Context, userHandle, provider string) (*models.OAuthTokenRecord, error) {
	var rec models.OAuthTokenRecord
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_handle, provider, access_token, refresh_token, expires_at, pkce_verifier, scope, email, account_id
		 FROM oauth_tokens WHERE user_handle = ? AND provider = ?`, userHandle, provider).
		Scan(&rec.ID, &rec.UserHandle, &rec.Provider, &rec.AccessToken, &rec.RefreshToken, &expiresAt, &rec.PKCEVerifier, &rec.Scope, &rec.Email, &rec.AccountID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("oauth token not found: %s/%s", userHandle, provider)
	}
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		rec.ExpiresAt = &expiresAt.Time
	}
	return &rec, nil
}

func (s *SQLiteStorage) DeleteOAuthToken(ctx context.Context, userHandle, provider string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_handle = ? AND provider = ?`, userHandle, provider)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
