package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func newTestLocalStore(t *testing.T) *LocalStore {
	t.Helper()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local store: %v", err)
	}
	return store
}

func TestLocalStoreSaveOpenDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	content := "pdf bytes"
	if err := store.Save(ctx, FolderPdfs, "a.pdf", strings.NewReader(content), int64(len(content)), "application/pdf"); err != nil {
		t.Fatalf("save: %v", err)
	}

	r, err := store.Open(ctx, FolderPdfs, "a.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, err := io.ReadAll(r)
	r.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != content {
		t.Errorf("read back %q, want %q", got, content)
	}

	if err := store.Delete(ctx, FolderPdfs, "a.pdf"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, FolderPdfs, "a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("open after delete: err = %v, want ErrNotFound", err)
	}
}

func TestLocalStoreDeleteIsIdempotent(t *testing.T) {
	store := newTestLocalStore(t)
	if err := store.Delete(context.Background(), FolderPdfTopics, "never-existed.png"); err != nil {
		t.Errorf("delete of missing file must succeed, got %v", err)
	}
}

func TestLocalStoreRejectsUnknownFolder(t *testing.T) {
	store := newTestLocalStore(t)
	err := store.Save(context.Background(), "secrets", "a.pdf", strings.NewReader("x"), 1, "")
	if err == nil {
		t.Fatal("expected save outside the fixed folders to fail")
	}
}

func TestLocalStoreNeutralizesTraversal(t *testing.T) {
	ctx := context.Background()
	store := newTestLocalStore(t)

	if err := store.Save(ctx, FolderPdfs, "../../escape.pdf", strings.NewReader("x"), 1, ""); err != nil {
		t.Fatalf("save: %v", err)
	}
	// 路径被压缩为基本名，仍然落在 pdfs 目录内。
	if _, err := store.Open(ctx, FolderPdfs, "escape.pdf"); err != nil {
		t.Errorf("sanitized file missing: %v", err)
	}
}
