package session

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"rfiledger/internal/entity"
)

// Store is the keyed per-user session catalog. Template and document
// references are persisted to sqlite so a workspace survives restarts;
// the preview list is a cache and lives in memory only.
//
// The store guards its own map, but serializing events for the same
// user is the transport layer's obligation, not the store's.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[int64]*entity.Session
}

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		user_id       INTEGER PRIMARY KEY,
		workspace_id  TEXT NOT NULL,
		template_path TEXT NOT NULL DEFAULT '',
		created_at    DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT PRIMARY KEY,
		user_id     INTEGER NOT NULL,
		file_name   TEXT NOT NULL,
		path        TEXT NOT NULL,
		uploaded_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

	CREATE TABLE IF NOT EXISTS artifacts (
		id         TEXT PRIMARY KEY,
		user_id    INTEGER NOT NULL,
		path       TEXT NOT NULL,
		row_count  INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_artifacts_user ON artifacts(user_id);
	`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create session schema: %w", err)
	}

	return &Store{db: db, logger: logger, sessions: make(map[int64]*entity.Session)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Ensure returns the session for userID, creating it on first contact.
// Idempotent: one session exists per user for the process lifetime.
func (s *Store) Ensure(ctx context.Context, userID int64) (*entity.Session, error) {
	s.mu.RLock()
	sess, ok := s.sessions[userID]
	s.mu.RUnlock()
	if ok {
		return sess, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[userID]; ok {
		return sess, nil
	}

	sess, err := s.loadSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &entity.Session{
			UserID:      userID,
			WorkspaceID: uuid.New(),
			CreatedAt:   time.Now().UTC(),
		}
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO sessions (user_id, workspace_id, template_path, created_at) VALUES (?, ?, '', ?)`,
			userID, sess.WorkspaceID.String(), sess.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("insert session: %w", err)
		}
		s.logger.Info("session.created", "user_id", userID, "workspace_id", sess.WorkspaceID.String())
	}
	s.sessions[userID] = sess
	return sess, nil
}

// AttachTemplate records the ledger template reference. Last write wins.
func (s *Store) AttachTemplate(ctx context.Context, userID int64, path string) error {
	sess, err := s.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET template_path = ? WHERE user_id = ?`, path, userID); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	sess.TemplatePath = path
	s.logger.Info("session.template.attached", "user_id", userID, "path", path)
	return nil
}

// AttachDocument appends a source document to the session's list. No
// de-duplication by name or content.
func (s *Store) AttachDocument(ctx context.Context, userID int64, doc entity.Document) error {
	sess, err := s.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, file_name, path, uploaded_at) VALUES (?, ?, ?, ?, ?)`,
		doc.ID.String(), userID, doc.FileName, doc.Path, doc.UploadedAt); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	sess.Documents = append(sess.Documents, doc)
	s.logger.Info("session.document.attached",
		"user_id", userID, "file_name", doc.FileName, "count", len(sess.Documents))
	return nil
}

// SetPreview replaces the cached preview list. Memory only.
func (s *Store) SetPreview(ctx context.Context, userID int64, records []entity.Record) error {
	sess, err := s.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	sess.Preview = records
	return nil
}

// SetGenerated records the most recently generated ledger artifact.
func (s *Store) SetGenerated(ctx context.Context, userID int64, art entity.Artifact) error {
	sess, err := s.Ensure(ctx, userID)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO artifacts (id, user_id, path, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		art.ID.String(), userID, art.Path, art.Rows, art.CreatedAt); err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	sess.Generated = &art
	s.logger.Info("session.artifact.set", "user_id", userID, "artifact", art.ID.String(), "rows", art.Rows)
	return nil
}

// loadSession rebuilds a persisted session; nil when the user is new.
func (s *Store) loadSession(ctx context.Context, userID int64) (*entity.Session, error) {
	sess := &entity.Session{UserID: userID}
	var workspaceID string
	err := s.db.QueryRowContext(ctx,
		`SELECT workspace_id, template_path, created_at FROM sessions WHERE user_id = ?`, userID).
		Scan(&workspaceID, &sess.TemplatePath, &sess.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess.WorkspaceID, err = uuid.Parse(workspaceID); err != nil {
		return nil, fmt.Errorf("parse workspace id: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_name, path, uploaded_at FROM documents WHERE user_id = ? ORDER BY uploaded_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc entity.Document
		var id string
		if err := rows.Scan(&id, &doc.FileName, &doc.Path, &doc.UploadedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		if doc.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse document id: %w", err)
		}
		sess.Documents = append(sess.Documents, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}

	var art entity.Artifact
	var artID string
	err = s.db.QueryRowContext(ctx,
		`SELECT id, path, row_count, created_at FROM artifacts WHERE user_id = ? ORDER BY created_at DESC, id LIMIT 1`, userID).
		Scan(&artID, &art.Path, &art.Rows, &art.CreatedAt)
	switch err {
	case nil:
		if art.ID, err = uuid.Parse(artID); err != nil {
			return nil, fmt.Errorf("parse artifact id: %w", err)
		}
		sess.Generated = &art
	case sql.ErrNoRows:
		// no artifact yet
	default:
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	s.logger.Debug("session.loaded", "user_id", userID, "documents", len(sess.Documents))
	return sess, nil
}
