package entity

import (
	"time"

	"github.com/google/uuid"
)

// Document is one uploaded inspection-request source file.
type Document struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	Path       string    `json:"path"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Artifact is a generated ledger workbook.
type Artifact struct {
	ID        uuid.UUID `json:"id"`
	Path      string    `json:"path"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the per-user working state. One Session exists per user
// identity; the transport layer is responsible for serializing events
// for the same user, the session itself holds no locks.
type Session struct {
	UserID       int64      `json:"user_id"`
	WorkspaceID  uuid.UUID  `json:"workspace_id"`
	TemplatePath string     `json:"template_path"`
	Documents    []Document `json:"documents"`
	Preview      []Record   `json:"preview,omitempty"`
	Generated    *Artifact  `json:"generated,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// HasTemplate reports whether a ledger template has been attached.
func (s *Session) HasTemplate() bool { return s.TemplatePath != "" }
