// Package store defines the Repository capability contract: transactional
// CRUD over the relational tables backing collections, documents, schemas,
// constraints, and dynamic index tables (spec §4, component F; design note
// "Repository capability", §9). The core depends only on this contract;
// concrete SQL dialects live under internal/store/sqlstore.
package store

import (
	"context"

	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/lattice/schema"
)

// Statement is one parameterized SQL statement. Placeholder syntax is the
// dialect's (?, $1, @p1, ...); callers that need dialect-aware SQL build it
// through the Dialect exposed by the concrete Repository implementation.
type Statement struct {
	SQL  string
	Args []any
}

// Row is one result row from ExecuteQuery, keyed by column name.
type Row map[string]any

// CollectionRepository manages Collection rows.
type CollectionRepository interface {
	CreateCollection(ctx context.Context, c *model.Collection) error
	GetCollection(ctx context.Context, id string) (*model.Collection, error)
	GetCollectionByName(ctx context.Context, name string) (*model.Collection, error)
	ListCollections(ctx context.Context) ([]model.Collection, error)
	UpdateCollectionConstraints(ctx context.Context, id string, mode model.SchemaEnforcementMode) error
	UpdateCollectionIndexing(ctx context.Context, id string, mode model.IndexingMode) error
	DeleteCollection(ctx context.Context, id string) error
}

// SchemaRepository manages Schema and SchemaElement rows.
type SchemaRepository interface {
	GetSchemaByHash(ctx context.Context, hash string) (*model.Schema, error)
	CreateSchema(ctx context.Context, s *model.Schema, elements []schema.Element) error
	GetSchema(ctx context.Context, id string) (*model.Schema, error)
	ListSchemas(ctx context.Context) ([]model.Schema, error)
	ListSchemaElements(ctx context.Context, schemaID string) ([]model.SchemaElement, error)
}

// DocumentRepository manages Document rows.
type DocumentRepository interface {
	CreateDocument(ctx context.Context, d *model.Document) error
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, collectionID string) ([]model.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// FieldConstraintRepository manages per-collection FieldConstraint rows.
type FieldConstraintRepository interface {
	ListFieldConstraints(ctx context.Context, collectionID string) ([]model.FieldConstraint, error)
	ReplaceFieldConstraints(ctx context.Context, collectionID string, constraints []model.FieldConstraint) error
}

// IndexedFieldRepository manages per-collection IndexedField rows.
type IndexedFieldRepository interface {
	ListIndexedFields(ctx context.Context, collectionID string) ([]model.IndexedField, error)
	ReplaceIndexedFields(ctx context.Context, collectionID string, fieldPaths []string) error
}

// IndexMappingRepository manages the global key<->tableName bijection.
type IndexMappingRepository interface {
	GetIndexTableMapping(ctx context.Context, key string) (*model.IndexTableMapping, error)
	CreateIndexTableMapping(ctx context.Context, key, tableName string) error
	ListIndexTableMappings(ctx context.Context) ([]model.IndexTableMapping, error)
	DeleteIndexTableMapping(ctx context.Context, key string) error
}

// LabelRepository manages polymorphic Label annotations.
type LabelRepository interface {
	AddLabel(ctx context.Context, l *model.Label) error
	ListLabels(ctx context.Context, collectionID, documentID *string) ([]model.Label, error)
	DeleteLabelsForDocument(ctx context.Context, documentID string) error
}

// TagRepository manages polymorphic Tag annotations.
type TagRepository interface {
	AddTag(ctx context.Context, t *model.Tag) error
	ListTags(ctx context.Context, collectionID, documentID *string) ([]model.Tag, error)
	DeleteTagsForDocument(ctx context.Context, documentID string) error
}

// ObjectLockRepository manages named ingestion locks.
type ObjectLockRepository interface {
	TryAcquireLock(ctx context.Context, l *model.ObjectLock) error
	GetLock(ctx context.Context, collectionID, documentName string) (*model.ObjectLock, error)
	ReleaseLock(ctx context.Context, lockID string) error
	DeleteLock(ctx context.Context, collectionID, documentName string) error
}

// IndexTableRepository manages the dynamic per-key tables and their rows.
// Table names are not known at compile time, so these operations build
// dialect-aware SQL internally rather than exposing typed columns.
type IndexTableRepository interface {
	EnsureIndexTableSchema(ctx context.Context, tableName string) error
	DropIndexTableSchema(ctx context.Context, tableName string) error
	InsertIndexEntries(ctx context.Context, tableName string, entries []model.IndexTableEntry) error
	DeleteIndexEntriesForDocument(ctx context.Context, tableName, documentID string) error
	DeleteIndexEntriesForCollection(ctx context.Context, tableName, collectionID string) (int64, error)
	CountIndexEntries(ctx context.Context, tableName string) (int64, error)
}

// Repository is the full capability contract the core depends on (spec §9,
// design note "Repository capability"). Concrete backends implement it;
// the index-table manager and search planner additionally use the generic
// Execute* methods to run dialect-aware SQL against dynamic tables.
type Repository interface {
	CollectionRepository
	SchemaRepository
	DocumentRepository
	FieldConstraintRepository
	IndexedFieldRepository
	IndexMappingRepository
	LabelRepository
	TagRepository
	ObjectLockRepository
	IndexTableRepository

	// ExecuteQuery runs a read-only statement and returns its rows.
	ExecuteQuery(ctx context.Context, stmt Statement) ([]Row, error)
	// ExecuteNonQuery runs a statement that does not return rows.
	ExecuteNonQuery(ctx context.Context, stmt Statement) (rowsAffected int64, err error)
	// ExecuteTransaction runs every statement against the same connection,
	// committing only if all succeed.
	ExecuteTransaction(ctx context.Context, stmts []Statement) error

	// Dialect exposes placeholder/quoting rules to components (index-table
	// manager, search planner) that must build dynamic SQL themselves.
	Dialect() Dialect

	Close() error
}

// Dialect abstracts the SQL surface differences between backends: embedded
// file DB, PostgreSQL, MySQL, SQL Server (spec §1, "the SQL dialect
// specifics are not the core").
type Dialect interface {
	// Name identifies the dialect for logging/diagnostics.
	Name() string
	// Placeholder returns the parameter marker for the nth (1-based) bind
	// variable: "?" for SQLite/MySQL/Dolt, "$1".. for Postgres, "@p1".. for
	// SQL Server.
	Placeholder(n int) string
	// QuoteIdent quotes a table/column identifier per the dialect's rules.
	QuoteIdent(ident string) string
	// SupportsCreateTableIfNotExists reports whether "CREATE TABLE IF NOT
	// EXISTS" is supported directly; if false, callers probe for the
	// table's existence first.
	SupportsCreateTableIfNotExists() bool
	// SupportsAddColumnIfNotExists reports whether "ALTER TABLE ... ADD
	// COLUMN IF NOT EXISTS" is supported directly (spec §6.2 migrations).
	SupportsAddColumnIfNotExists() bool
}
