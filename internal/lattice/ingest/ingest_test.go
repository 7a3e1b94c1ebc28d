package ingest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/lattice/lattice/internal/blobstore"
	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/id"
	"github.com/lattice/lattice/internal/lattice/indextable"
	"github.com/lattice/lattice/internal/lattice/lock"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/store/sqlstore"
)

func newTestRepo(t *testing.T) *sqlstore.Repository {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "lattice.db")
	repo, err := sqlstore.Open(ctx, sqlstore.BackendSQLite, dbPath)
	if err != nil {
		t.Fatalf("sqlstore.Open: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newTestCollection(t *testing.T, repo *sqlstore.Repository, indexing model.IndexingMode, enforcement model.SchemaEnforcementMode) *model.Collection {
	t.Helper()
	c := &model.Collection{
		ID:                   id.New(id.Collection),
		Name:                 "widgets",
		DocumentsDirectory:   filepath.Join(t.TempDir(), "widgets"),
		SchemaEnforcementMode: enforcement,
		IndexingMode:         indexing,
		ObjectLockExpiration: 30,
	}
	if err := repo.CreateCollection(context.Background(), c); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	return c
}

func newTestService(repo *sqlstore.Repository) *Service {
	blobs := blobstore.New()
	locks := lock.New(repo, "test-host")
	indexes := indextable.New(repo)
	return New(repo, blobs, locks, indexes)
}

func TestIngestStoresDocumentAndIndexesAllKeys(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := newTestCollection(t, repo, model.IndexingAll, model.EnforcementNone)
	svc := newTestService(repo)

	result, err := svc.Ingest(ctx, Request{
		CollectionID: c.ID,
		RawJSON:      []byte(`{"name":"widget-a","price":9.99}`),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Document.ID == "" {
		t.Fatal("expected a generated document ID")
	}

	stored, err := repo.GetDocument(ctx, result.Document.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if stored.CollectionID != c.ID {
		t.Errorf("CollectionID = %q, want %q", stored.CollectionID, c.ID)
	}

	mapping, err := repo.GetIndexTableMapping(ctx, "name")
	if err != nil {
		t.Fatalf("GetIndexTableMapping: %v", err)
	}
	if mapping == nil {
		t.Fatal("expected an index table mapping for key \"name\" under All indexing")
	}
	count, err := repo.CountIndexEntries(ctx, mapping.TableName)
	if err != nil {
		t.Fatalf("CountIndexEntries: %v", err)
	}
	if count != 1 {
		t.Errorf("CountIndexEntries = %d, want 1", count)
	}
}

func TestIngestSelectiveIndexingOnlyIndexesAllowedFields(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := newTestCollection(t, repo, model.IndexingSelective, model.EnforcementNone)
	if err := repo.ReplaceIndexedFields(ctx, c.ID, []string{"name"}); err != nil {
		t.Fatalf("ReplaceIndexedFields: %v", err)
	}
	svc := newTestService(repo)

	if _, err := svc.Ingest(ctx, Request{
		CollectionID: c.ID,
		RawJSON:      []byte(`{"name":"widget-a","price":9.99}`),
	}); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if mapping, err := repo.GetIndexTableMapping(ctx, "name"); err != nil || mapping == nil {
		t.Fatalf("expected index mapping for name, got %+v, err=%v", mapping, err)
	}
	if mapping, err := repo.GetIndexTableMapping(ctx, "price"); err != nil {
		t.Fatalf("GetIndexTableMapping: %v", err)
	} else if mapping != nil {
		t.Error("price should not have an index table mapping under selective indexing")
	}
}

func TestIngestStrictEnforcementRejectsInvalidDocument(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := newTestCollection(t, repo, model.IndexingNone, model.EnforcementStrict)

	strType := "string"
	if err := repo.ReplaceFieldConstraints(ctx, c.ID, []model.FieldConstraint{
		{ID: id.New(id.FieldConstraint), CollectionID: c.ID, FieldPath: "name", Required: true, DataType: &strType},
	}); err != nil {
		t.Fatalf("ReplaceFieldConstraints: %v", err)
	}
	svc := newTestService(repo)

	_, err := svc.Ingest(ctx, Request{CollectionID: c.ID, RawJSON: []byte(`{"price":9.99}`)})
	if err == nil {
		t.Fatal("expected validation error for missing required field under Strict enforcement")
	}
	e, ok := errs.Of(err)
	if !ok || e.Kind != errs.SchemaValidation {
		t.Fatalf("err = %v, want a SchemaValidation error", err)
	}
}

func TestIngestSoftEnforcementReturnsWarningsButStillStores(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := newTestCollection(t, repo, model.IndexingNone, model.EnforcementSoft)

	if err := repo.ReplaceFieldConstraints(ctx, c.ID, []model.FieldConstraint{
		{ID: id.New(id.FieldConstraint), CollectionID: c.ID, FieldPath: "name", Required: true},
	}); err != nil {
		t.Fatalf("ReplaceFieldConstraints: %v", err)
	}
	svc := newTestService(repo)

	result, err := svc.Ingest(ctx, Request{CollectionID: c.ID, RawJSON: []byte(`{"price":9.99}`)})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("Warnings = %+v, want exactly one", result.Warnings)
	}

	if _, err := repo.GetDocument(ctx, result.Document.ID); err != nil {
		t.Fatalf("document should still be stored under Soft enforcement: %v", err)
	}
}

func TestIngestDedupesSchemaByContentHash(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := newTestCollection(t, repo, model.IndexingNone, model.EnforcementNone)
	svc := newTestService(repo)

	first, err := svc.Ingest(ctx, Request{CollectionID: c.ID, RawJSON: []byte(`{"name":"a","qty":1}`)})
	if err != nil {
		t.Fatalf("Ingest first: %v", err)
	}
	second, err := svc.Ingest(ctx, Request{CollectionID: c.ID, RawJSON: []byte(`{"name":"b","qty":2}`)})
	if err != nil {
		t.Fatalf("Ingest second: %v", err)
	}
	if first.Document.SchemaID != second.Document.SchemaID {
		t.Errorf("SchemaID = %q, %q, want equal for same-shape documents", first.Document.SchemaID, second.Document.SchemaID)
	}

	schemas, err := repo.ListSchemas(ctx)
	if err != nil {
		t.Fatalf("ListSchemas: %v", err)
	}
	if len(schemas) != 1 {
		t.Errorf("len(ListSchemas()) = %d, want 1 (dedup by content hash)", len(schemas))
	}
}

func TestIngestRespectsObjectLocking(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	c := &model.Collection{
		ID:                    id.New(id.Collection),
		Name:                  "widgets",
		DocumentsDirectory:    filepath.Join(t.TempDir(), "widgets"),
		SchemaEnforcementMode: model.EnforcementNone,
		IndexingMode:          model.IndexingNone,
		EnableObjectLocking:   true,
		ObjectLockExpiration:  30,
	}
	if err := repo.CreateCollection(ctx, c); err != nil {
		t.Fatalf("CreateCollection: %v", err)
	}
	name := "singleton"

	svc := newTestService(repo)
	if _, err := svc.Ingest(ctx, Request{CollectionID: c.ID, RawJSON: []byte(`{"v":1}`), Name: &name}); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}
	if _, err := svc.Ingest(ctx, Request{CollectionID: c.ID, RawJSON: []byte(`{"v":2}`), Name: &name}); err != nil {
		t.Fatalf("second Ingest under the same name should succeed once the first lock is released: %v", err)
	}
}
