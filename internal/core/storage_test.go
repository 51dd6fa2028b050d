package core

import (
	"context"
	"path/filepath"
	"testing"

	"sollist/internal/config"
	"sollist/internal/infra/persistence/memory"
	"sollist/internal/infra/persistence/sqlite"
)

func TestOpenPersistentStoreMemory(t *testing.T) {
	store, err := OpenPersistentStore(context.Background(), config.StorageConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, ok := store.(*memory.Store); !ok {
		t.Fatalf("expected *memory.Store, got %T", store)
	}
}

func TestOpenPersistentStoreDefaultsToSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	store, err := OpenPersistentStore(context.Background(), config.StorageConfig{SQLitePath: path})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	s, ok := store.(*sqlite.Store)
	if !ok {
		t.Fatalf("expected *sqlite.Store, got %T", store)
	}
	t.Cleanup(func() { _ = s.Close() })
	if s.Path() != path {
		t.Fatalf("unexpected path %q", s.Path())
	}

	svc := NewService(store)
	if _, err := svc.ReconcileSnapshot(context.Background(), "main", []ActualRecord{{Name: "R1", Category: "Office", Quantity: 1}}); err != nil {
		t.Fatalf("reconcile through sqlite: %v", err)
	}
}

func TestOpenPersistentStoreUnknown(t *testing.T) {
	if _, err := OpenPersistentStore(context.Background(), config.StorageConfig{Driver: "redis"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
