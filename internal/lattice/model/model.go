// Package model holds the data types shared by every Lattice component:
// collections, documents, schemas, field constraints, index-table mappings,
// labels, tags, and object locks. These are plain structs; persistence is the
// job of internal/store, not this package.
package model

import "time"

// SchemaEnforcementMode controls whether ingestion validates a document
// against its collection's field constraints.
type SchemaEnforcementMode string

const (
	EnforcementNone   SchemaEnforcementMode = "None"
	EnforcementSoft   SchemaEnforcementMode = "Soft"
	EnforcementStrict SchemaEnforcementMode = "Strict"
)

// IndexingMode controls which flattened keys get a dynamic index table.
type IndexingMode string

const (
	IndexingNone      IndexingMode = "None"
	IndexingAll       IndexingMode = "All"
	IndexingSelective IndexingMode = "Selective"
)

// Collection is a logical namespace for documents and their indexing policy.
type Collection struct {
	ID                     string                `json:"id"`
	Name                   string                `json:"name"`
	Description            *string               `json:"description,omitempty"`
	DocumentsDirectory     string                `json:"documentsDirectory"`
	SchemaEnforcementMode  SchemaEnforcementMode `json:"schemaEnforcementMode"`
	IndexingMode           IndexingMode          `json:"indexingMode"`
	EnableObjectLocking    bool                  `json:"enableObjectLocking"`
	ObjectLockExpiration   int                   `json:"objectLockExpirationSeconds"`
	CreatedUtc             time.Time             `json:"createdUtc"`
	LastUpdateUtc          time.Time             `json:"lastUpdateUtc"`
}

// Document is metadata for a stored JSON body. The body bytes live in the
// blob store, keyed by ID.
type Document struct {
	ID            string    `json:"id"`
	CollectionID  string    `json:"collectionId"`
	SchemaID      string    `json:"schemaId"`
	Name          *string   `json:"name,omitempty"`
	ContentLength int64     `json:"contentLength"`
	SHA256Hash    string    `json:"sha256Hash"`
	CreatedUtc    time.Time `json:"createdUtc"`
	LastUpdateUtc time.Time `json:"lastUpdateUtc"`
}

// Schema is a deduplicated structural fingerprint of a JSON shape.
type Schema struct {
	ID            string    `json:"id"`
	Name          *string   `json:"name,omitempty"`
	Hash          string    `json:"hash"`
	CreatedUtc    time.Time `json:"createdUtc"`
	LastUpdateUtc time.Time `json:"lastUpdateUtc"`
}

// SchemaElement is one entry of a schema's ordered element list.
type SchemaElement struct {
	ID            string    `json:"id"`
	SchemaID      string    `json:"schemaId"`
	Position      int       `json:"position"`
	Key           string    `json:"key"`
	DataType      string    `json:"dataType"`
	Nullable      bool      `json:"nullable"`
	CreatedUtc    time.Time `json:"createdUtc"`
	LastUpdateUtc time.Time `json:"lastUpdateUtc"`
}

// FieldConstraint is a per-collection validation rule keyed by fieldPath.
type FieldConstraint struct {
	ID              string    `json:"id"`
	CollectionID    string    `json:"collectionId"`
	FieldPath       string    `json:"fieldPath"`
	DataType        *string   `json:"dataType,omitempty"`
	Required        bool      `json:"required"`
	Nullable        bool      `json:"nullable"`
	RegexPattern    *string   `json:"regexPattern,omitempty"`
	MinValue        *float64  `json:"minValue,omitempty"`
	MaxValue        *float64  `json:"maxValue,omitempty"`
	MinLength       *int      `json:"minLength,omitempty"`
	MaxLength       *int      `json:"maxLength,omitempty"`
	AllowedValues   []string  `json:"allowedValues,omitempty"`
	ArrayElementType *string  `json:"arrayElementType,omitempty"`
	CreatedUtc      time.Time `json:"createdUtc"`
	LastUpdateUtc   time.Time `json:"lastUpdateUtc"`
}

// IndexedField is a per-collection opt-in for selective indexing.
type IndexedField struct {
	ID            string    `json:"id"`
	CollectionID  string    `json:"collectionId"`
	FieldPath     string    `json:"fieldPath"`
	CreatedUtc    time.Time `json:"createdUtc"`
	LastUpdateUtc time.Time `json:"lastUpdateUtc"`
}

// IndexTableMapping is the global bijection between a flattened key and the
// physical table name that stores its index rows.
type IndexTableMapping struct {
	ID         string    `json:"id"`
	Key        string    `json:"key"`
	TableName  string    `json:"tableName"`
	CreatedUtc time.Time `json:"createdUtc"`
}

// IndexTableEntry is one row of a dynamic index table.
type IndexTableEntry struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"documentId"`
	Position   *int      `json:"position,omitempty"`
	Value      string    `json:"value"`
	CreatedUtc time.Time `json:"createdUtc"`
}

// Label is a single-string annotation on exactly one of a collection or a
// document.
type Label struct {
	ID           string    `json:"id"`
	CollectionID *string   `json:"collectionId,omitempty"`
	DocumentID   *string   `json:"documentId,omitempty"`
	Value        string    `json:"value"`
	CreatedUtc   time.Time `json:"createdUtc"`
}

// Tag is a key/value annotation on exactly one of a collection or a document.
type Tag struct {
	ID           string    `json:"id"`
	CollectionID *string   `json:"collectionId,omitempty"`
	DocumentID   *string   `json:"documentId,omitempty"`
	Key          string    `json:"key"`
	Value        string    `json:"value"`
	CreatedUtc   time.Time `json:"createdUtc"`
}

// ObjectLock is a TTL-bounded claim on a (collectionId, documentName) pair.
type ObjectLock struct {
	ID           string    `json:"id"`
	CollectionID string    `json:"collectionId"`
	DocumentName string    `json:"documentName"`
	Hostname     string    `json:"hostname"`
	CreatedUtc   time.Time `json:"createdUtc"`
}

// Expired reports whether the lock has outlived its TTL as of now.
func (l ObjectLock) Expired(now time.Time, ttlSeconds int) bool {
	return now.Sub(l.CreatedUtc) > time.Duration(ttlSeconds)*time.Second
}
