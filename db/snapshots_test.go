// ABOUTME: Tests for the SQLite page snapshot repository
// ABOUTME: Covers upsert, missing pages, pruning, and clearing
package db

import (
	"bytes"
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndLoadPage(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))
	ctx := context.Background()

	if err := repo.SavePage(ctx, "leads", "companyId=c1", []byte(`{"items":[]}`)); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}
	if err := repo.SavePage(ctx, "leads", "companyId=c1", []byte(`{"items":[1]}`)); err != nil {
		t.Fatalf("SavePage overwrite failed: %v", err)
	}

	data, err := repo.LoadPage(ctx, "leads", "companyId=c1")
	if err != nil {
		t.Fatalf("LoadPage failed: %v", err)
	}
	if !bytes.Equal(data, []byte(`{"items":[1]}`)) {
		t.Errorf("Expected latest page, got %s", data)
	}

	other, err := repo.LoadPage(ctx, "tasks", "companyId=c1")
	if err != nil {
		t.Fatalf("LoadPage for other resource failed: %v", err)
	}
	if other != nil {
		t.Errorf("Expected no page for tasks, got %s", other)
	}
}

func TestPruneSnapshots(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return base }
	if err := repo.SavePage(ctx, "calls", "old", []byte("1")); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}
	repo.now = func() time.Time { return base.Add(48 * time.Hour) }
	if err := repo.SavePage(ctx, "calls", "new", []byte("2")); err != nil {
		t.Fatalf("SavePage failed: %v", err)
	}

	n, err := repo.Prune(ctx, base.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 pruned page, got %d", n)
	}

	if data, _ := repo.LoadPage(ctx, "calls", "new"); data == nil {
		t.Error("Recent page should survive pruning")
	}
}

func TestClearSnapshots(t *testing.T) {
	repo := NewSnapshotRepository(setupTestDB(t))
	ctx := context.Background()

	for _, resource := range []string{"meetings", "tasks"} {
		if err := repo.SavePage(ctx, resource, "k", []byte("x")); err != nil {
			t.Fatalf("SavePage failed: %v", err)
		}
	}

	if err := repo.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	for _, resource := range []string{"meetings", "tasks"} {
		data, err := repo.LoadPage(ctx, resource, "k")
		if err != nil {
			t.Fatalf("LoadPage failed: %v", err)
		}
		if data != nil {
			t.Errorf("Expected %s page to be cleared", resource)
		}
	}
}
