package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/iho/coinwallet/internal/domain"
)

func TestStorePersistsAcrossInstances(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	err = s.PutAll(ctx, map[string][]byte{
		"transactions": []byte(`[]`),
		"balances":     []byte(`{"bitcoin":"0.025"}`),
	})
	if err != nil {
		t.Fatalf("putall: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Get(ctx, "balances")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"bitcoin":"0.025"}` {
		t.Fatalf("unexpected value %s", got)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected only committed files, found %d entries", len(entries))
	}
}

func TestStoreMissingAndDelete(t *testing.T) {
	ctx := context.Background()
	s, err := NewStore(filepath.Join(t.TempDir(), "nested"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if _, err := s.Get(ctx, "users"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "users"); err != nil {
		t.Fatalf("deleting a missing key should succeed, got %v", err)
	}

	if err := s.Put(ctx, "users", []byte(`[]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.Delete(ctx, "users"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, "users"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestStoreRejectsPathTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Put(context.Background(), "../escape", []byte("x")); err == nil {
		t.Fatal("expected invalid key error")
	}
}

func TestStorePutAllFailureKeepsEveryDocument(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Put(ctx, "transactions", []byte(`["old"]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	// a non-empty directory where balances.json belongs makes that commit fail
	blocker := filepath.Join(dir, "balances.json")
	if err := os.MkdirAll(filepath.Join(blocker, "child"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	err = s.PutAll(ctx, map[string][]byte{
		"transactions": []byte(`["new"]`),
		"balances":     []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected putall to fail")
	}

	got, err := s.Get(ctx, "transactions")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `["old"]` {
		t.Fatalf("transactions changed by a failed putall: %s", got)
	}

	matches, _ := filepath.Glob(filepath.Join(dir, ".*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("staged files left behind: %v", matches)
	}
}

func TestStoreRestoreRollsBackCommittedDocuments(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s, err := NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	if err := s.Put(ctx, "transactions", []byte(`["old"]`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := s.PutAll(ctx, map[string][]byte{
		"transactions": []byte(`["new"]`),
		"balances":     []byte(`{}`),
	}); err != nil {
		t.Fatalf("putall: %v", err)
	}

	txPath, _ := s.path("transactions")
	balPath, _ := s.path("balances")
	err = s.restore([]string{txPath, balPath}, map[string][]byte{
		txPath:  []byte(`["old"]`),
		balPath: nil,
	})
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := s.Get(ctx, "transactions")
	if err != nil || string(got) != `["old"]` {
		t.Fatalf("expected previous transactions, got %s (%v)", got, err)
	}
	if _, err := s.Get(ctx, "balances"); !errors.Is(err, domain.ErrKeyNotFound) {
		t.Fatalf("expected balances to be removed, got %v", err)
	}
}
