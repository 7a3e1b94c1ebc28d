package rebuild

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/ingest"
	"github.com/lattice/lattice/internal/lattice/lock"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/store/sqlstore"
)

func setupCollection(t *testing.T, indexing model.IndexingMode) (*sqlstore.Repository, *ingest.Service, *model.Collection) {
	t.Helper()
	ctx := context.Background()
	repo, err := sqlstore.Open(ctx, sqlstore.BackendSQLite, filepath.Join(t.TempDir(), "lattice.db"))
	if err != nil {
		t.Fatalf("sqlstore.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	c := &model.Collection{
		ID:                   id.New(id.Collection),
		Name:                 "events",
		DocumentsDirectory:   filepath.Join(t.TempDir(), "events"),
		SchemaEnforcementMode: model.EnforcementNone,
		IndexingMode:         indexing,
		ObjectLockExpiration: 30,
	}
	if err := repo.CreateCollection(ctx, c); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}

	blobs := blobstore.New()
	svc := ingest.New(repo, blobs, lock.New(repo, "test-host"), indextable.New(repo))
	return repo, svc, c
}

func TestRebuildAddsIndexesAfterModeChangeToAll(t *testing.T) {
	ctx := context.Background()
	repo, ingestSvc, c := setupCollection(t, model.IndexingSelective)

	if err := repo.ReplaceIndexedFields(ctx, c.ID, []string{"kind"}); err != nil {
		t.Fatalf("ReplaceIndexedFields: %v", err)
	}
	if _, err := ingestSvc.Ingest(ctx, ingest.Request{CollectionID: c.ID, RawJSON: []byte(`{"kind":"click","target":"button"}`)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if mapping, err := repo.GetIndexTableMapping(ctx, "target"); err != nil || mapping != nil {
		t.Fatalf("target should not be indexed yet under Selective mode, mapping=%+v err=%v", mapping, err)
	}

	if err := repo.UpdateCollectionIndexing(ctx, c.ID, model.IndexingAll); err != nil {
		t.Fatalf("UpdateCollectionIndexing: %v", err)
	}
	c.IndexingMode = model.IndexingAll

	svc := New(repo, blobstore.New(), indextable.New(repo))
	result, err := svc.Rebuild(ctx, c.ID, false)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if result.DocumentsProcessed != 1 {
		t.Errorf("DocumentsProcessed = %d, want 1", result.DocumentsProcessed)
	}

	mapping, err := repo.GetIndexTableMapping(ctx, "target")
	if err != nil {
		t.Fatalf("GetIndexTableMapping: %v", err)
	}
	if mapping == nil {
		t.Fatal("expected \"target\" to gain an index table after rebuild under All mode")
	}
	count, err := repo.CountIndexEntries(ctx, mapping.TableName)
	if err != nil {
		t.Fatalf("CountIndexEntries: %v", err)
	}
	if count != 1 {
		t.Errorf("CountIndexEntries = %d, want 1", count)
	}
}

func TestRebuildDropUnusedRemovesRowsForDeselectedKey(t *testing.T) {
	ctx := context.Background()
	repo, ingestSvc, c := setupCollection(t, model.IndexingAll)

	if _, err := ingestSvc.Ingest(ctx, ingest.Request{CollectionID: c.ID, RawJSON: []byte(`{"kind":"click","target":"button"}`)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if err := repo.UpdateCollectionIndexing(ctx, c.ID, model.IndexingSelective); err != nil {
		t.Fatalf("UpdateCollectionIndexing: %v", err)
	}
	if err := repo.ReplaceIndexedFields(ctx, c.ID, []string{"kind"}); err != nil {
		t.Fatalf("ReplaceIndexedFields: %v", err)
	}
	c.IndexingMode = model.IndexingSelective

	svc := New(repo, blobstore.New(), indextable.New(repo))
	result, err := svc.Rebuild(ctx, c.ID, true)
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	found := false
	for _, k := range result.IndexesDropped {
		if k == "target" {
			found = true
		}
	}
	if !found {
		t.Errorf("IndexesDropped = %v, want it to include \"target\"", result.IndexesDropped)
	}

	mapping, err := repo.GetIndexTableMapping(ctx, "target")
	if err != nil {
		t.Fatalf("GetIndexTableMapping: %v", err)
	}
	if mapping != nil {
		t.Error("expected \"target\"'s index table mapping to be dropped once no collection uses it")
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo, ingestSvc, c := setupCollection(t, model.IndexingAll)

	if _, err := ingestSvc.Ingest(ctx, ingest.Request{CollectionID: c.ID, RawJSON: []byte(`{"kind":"click"}`)}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	svc := New(repo, blobstore.New(), indextable.New(repo))
	if _, err := svc.Rebuild(ctx, c.ID, false); err != nil {
		t.Fatalf("first Rebuild: %v", err)
	}
	if _, err := svc.Rebuild(ctx, c.ID, false); err != nil {
		t.Fatalf("second Rebuild: %v", err)
	}

	mapping, err := repo.GetIndexTableMapping(ctx, "kind")
	if err != nil {
		t.Fatalf("GetIndexTableMapping: %v", err)
	}
	count, err := repo.CountIndexEntries(ctx, mapping.TableName)
	if err != nil {
		t.Fatalf("CountIndexEntries: %v", err)
	}
	if count != 1 {
		t.Errorf("CountIndexEntries = %d after two rebuilds, want 1 (no duplicate rows)", count)
	}
}
