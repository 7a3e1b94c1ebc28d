package indextable

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/store/sqlstore"
)

func newTestRepo(t *testing.T) *sqlstore.Repository {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlstore.Open(ctx, sqlstore.BackendSQLite, filepath.Join(t.TempDir(), "lattice.db"))
	if err != nil {
		t.Fatalf("sqlstore.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestEnsureIndexTableIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := New(repo)

	first, err := m.EnsureIndexTable(ctx, "user.email")
	if err != nil {
		t.Fatalf("EnsureIndexTable: %v", err)
	}
	second, err := m.EnsureIndexTable(ctx, "user.email")
	if err != nil {
		t.Fatalf("EnsureIndexTable (second call): %v", err)
	}
	if first != second {
		t.Errorf("table name changed across calls: %q != %q", first, second)
	}
}

func TestInsertEntriesAndCountIndexEntries(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := New(repo)

	tableName, err := m.EnsureIndexTable(ctx, "tags")
	if err != nil {
		t.Fatalf("EnsureIndexTable: %v", err)
	}

	entries := []IndexedValue{
		{ID: id.New(id.IndexTableValue), Value: "red"},
		{ID: id.New(id.IndexTableValue), Value: "blue"},
	}
	if err := m.InsertEntries(ctx, tableName, "doc_1", entries); err != nil {
		t.Fatalf("InsertEntries: %v", err)
	}

	count, err := repo.CountIndexEntries(ctx, tableName)
	if err != nil {
		t.Fatalf("CountIndexEntries: %v", err)
	}
	if count != 2 {
		t.Errorf("CountIndexEntries = %d, want 2", count)
	}
}

func TestPurgeDocumentRemovesRowsAcrossAllTables(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := New(repo)

	colorTable, err := m.EnsureIndexTable(ctx, "color")
	if err != nil {
		t.Fatalf("EnsureIndexTable color: %v", err)
	}
	sizeTable, err := m.EnsureIndexTable(ctx, "size")
	if err != nil {
		t.Fatalf("EnsureIndexTable size: %v", err)
	}

	if err := m.InsertEntries(ctx, colorTable, "doc_1", []IndexedValue{{ID: id.New(id.IndexTableValue), Value: "red"}}); err != nil {
		t.Fatalf("InsertEntries color: %v", err)
	}
	if err := m.InsertEntries(ctx, sizeTable, "doc_1", []IndexedValue{{ID: id.New(id.IndexTableValue), Value: "large"}}); err != nil {
		t.Fatalf("InsertEntries size: %v", err)
	}

	if err := m.PurgeDocument(ctx, "doc_1"); err != nil {
		t.Fatalf("PurgeDocument: %v", err)
	}

	for _, table := range []string{colorTable, sizeTable} {
		count, err := repo.CountIndexEntries(ctx, table)
		if err != nil {
			t.Fatalf("CountIndexEntries(%q): %v", table, err)
		}
		if count != 0 {
			t.Errorf("CountIndexEntries(%q) = %d after purge, want 0", table, count)
		}
	}
}

func TestDropIndexTableIsNoopWhenMissing(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := New(repo)

	if err := m.DropIndexTable(ctx, "never-indexed"); err != nil {
		t.Fatalf("DropIndexTable on a never-indexed key should be a no-op, got: %v", err)
	}
}

func TestDropIndexTableRemovesMapping(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	m := New(repo)

	if _, err := m.EnsureIndexTable(ctx, "sku"); err != nil {
		t.Fatalf("EnsureIndexTable: %v", err)
	}
	if err := m.DropIndexTable(ctx, "sku"); err != nil {
		t.Fatalf("DropIndexTable: %v", err)
	}

	mapping, err := repo.GetIndexTableMapping(ctx, "sku")
	if err != nil {
		t.Fatalf("GetIndexTableMapping: %v", err)
	}
	if mapping != nil {
		t.Error("expected mapping to be gone after DropIndexTable")
	}
}
