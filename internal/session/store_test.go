package session

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"rfiledger/internal/entity"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openStore(t *testing.T, dbPath string) *Store {
	t.Helper()
	s, err := NewStore(dbPath, testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testDoc(name string) entity.Document {
	return entity.Document{
		ID:         uuid.New(),
		FileName:   name,
		Path:       "/data/" + name,
		UploadedAt: time.Now().UTC(),
	}
}

func TestEnsure_Idempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "sessions.db"))

	a, err := s.Ensure(ctx, 42)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	b, err := s.Ensure(ctx, 42)
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if a != b {
		t.Fatal("Ensure returned distinct sessions for the same user")
	}
	if a.WorkspaceID == uuid.Nil {
		t.Fatal("workspace id not assigned")
	}

	other, err := s.Ensure(ctx, 43)
	if err != nil {
		t.Fatalf("ensure other: %v", err)
	}
	if other.WorkspaceID == a.WorkspaceID {
		t.Fatal("users share a workspace")
	}
}

func TestAttachTemplate_LastWriteWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "sessions.db"))

	if err := s.AttachTemplate(ctx, 1, "/data/a.xlsx"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := s.AttachTemplate(ctx, 1, "/data/b.xlsx"); err != nil {
		t.Fatalf("attach: %v", err)
	}
	sess, _ := s.Ensure(ctx, 1)
	if sess.TemplatePath != "/data/b.xlsx" {
		t.Fatalf("template = %q, want last write", sess.TemplatePath)
	}
}

func TestAttachDocument_AppendsWithoutDedup(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := openStore(t, filepath.Join(t.TempDir(), "sessions.db"))

	d1 := testDoc("a.pdf")
	d2 := testDoc("a.pdf") // same filename on purpose
	if err := s.AttachDocument(ctx, 1, d1); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := s.AttachDocument(ctx, 1, d2); err != nil {
		t.Fatalf("attach: %v", err)
	}

	sess, _ := s.Ensure(ctx, 1)
	if len(sess.Documents) != 2 {
		t.Fatalf("documents = %d, want 2", len(sess.Documents))
	}
	if sess.Documents[0].ID != d1.ID || sess.Documents[1].ID != d2.ID {
		t.Fatal("upload order not preserved")
	}
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "sessions.db")

	s := openStore(t, dbPath)
	first, err := s.Ensure(ctx, 7)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := s.AttachTemplate(ctx, 7, "/data/ledger.xlsx"); err != nil {
		t.Fatalf("attach template: %v", err)
	}
	doc := testDoc("wir-855.pdf")
	if err := s.AttachDocument(ctx, 7, doc); err != nil {
		t.Fatalf("attach document: %v", err)
	}
	if err := s.SetPreview(ctx, 7, []entity.Record{{RFINumber: "855"}}); err != nil {
		t.Fatalf("set preview: %v", err)
	}
	art := entity.Artifact{ID: uuid.New(), Path: "/data/out.xlsx", Rows: 1, CreatedAt: time.Now().UTC()}
	if err := s.SetGenerated(ctx, 7, art); err != nil {
		t.Fatalf("set generated: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened := openStore(t, dbPath)
	sess, err := reopened.Ensure(ctx, 7)
	if err != nil {
		t.Fatalf("ensure after reopen: %v", err)
	}
	if sess.WorkspaceID != first.WorkspaceID {
		t.Fatal("workspace id changed across reopen")
	}
	if sess.TemplatePath != "/data/ledger.xlsx" {
		t.Fatalf("template = %q", sess.TemplatePath)
	}
	if len(sess.Documents) != 1 || sess.Documents[0].ID != doc.ID {
		t.Fatalf("documents = %+v", sess.Documents)
	}
	if sess.Generated == nil || sess.Generated.ID != art.ID {
		t.Fatalf("generated = %+v", sess.Generated)
	}
	// preview is a cache, not persisted state
	if len(sess.Preview) != 0 {
		t.Fatalf("preview survived reopen: %+v", sess.Preview)
	}
}
