package sqlstore

// FixedSchema is the DDL for the ten fixed relational tables (spec §6.2).
// It is written against a portable TEXT/INTEGER column surface so the same
// statements apply, with IF NOT EXISTS, across SQLite, Dolt, and MySQL.
// Repository.ensureSchema runs the statements unchanged on every dialect,
// so the backend has to accept IF NOT EXISTS.
const FixedSchema = `
CREATE TABLE IF NOT EXISTS collections (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL UNIQUE,
	description TEXT,
	documentsdirectory TEXT NOT NULL,
	schemaenforcementmode TEXT NOT NULL,
	indexingmode TEXT NOT NULL,
	enableobjectlocking INTEGER NOT NULL DEFAULT 0,
	objectlockexpiration INTEGER NOT NULL DEFAULT 30,
	createdutc TEXT NOT NULL,
	lastupdateutc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schemas (
	id TEXT PRIMARY KEY,
	name TEXT,
	hash TEXT NOT NULL UNIQUE,
	createdutc TEXT NOT NULL,
	lastupdateutc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS schemaelements (
	id TEXT PRIMARY KEY,
	schemaid TEXT NOT NULL,
	position INTEGER NOT NULL,
	key TEXT NOT NULL,
	datatype TEXT NOT NULL,
	nullable INTEGER NOT NULL,
	createdutc TEXT NOT NULL,
	lastupdateutc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_schemaelements_schemaid ON schemaelements(schemaid);

CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	collectionid TEXT NOT NULL,
	schemaid TEXT NOT NULL,
	name TEXT,
	contentlength INTEGER NOT NULL,
	sha256hash TEXT NOT NULL,
	createdutc TEXT NOT NULL,
	lastupdateutc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_collectionid ON documents(collectionid);

CREATE TABLE IF NOT EXISTS labels (
	id TEXT PRIMARY KEY,
	collectionid TEXT,
	documentid TEXT,
	value TEXT NOT NULL,
	createdutc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_labels_documentid ON labels(documentid);
CREATE INDEX IF NOT EXISTS idx_labels_collectionid ON labels(collectionid);

CREATE TABLE IF NOT EXISTS tags (
	id TEXT PRIMARY KEY,
	collectionid TEXT,
	documentid TEXT,
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	createdutc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tags_documentid ON tags(documentid);
CREATE INDEX IF NOT EXISTS idx_tags_collectionid ON tags(collectionid);

CREATE TABLE IF NOT EXISTS indextablemappings (
	id TEXT PRIMARY KEY,
	key TEXT NOT NULL UNIQUE,
	tablename TEXT NOT NULL UNIQUE,
	createdutc TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS fieldconstraints (
	id TEXT PRIMARY KEY,
	collectionid TEXT NOT NULL,
	fieldpath TEXT NOT NULL,
	datatype TEXT,
	required INTEGER NOT NULL DEFAULT 0,
	nullable INTEGER NOT NULL DEFAULT 1,
	regexpattern TEXT,
	minvalue REAL,
	maxvalue REAL,
	minlength INTEGER,
	maxlength INTEGER,
	allowedvalues TEXT,
	arrayelementtype TEXT,
	createdutc TEXT NOT NULL,
	lastupdateutc TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_fieldconstraints_path ON fieldconstraints(collectionid, fieldpath);

CREATE TABLE IF NOT EXISTS indexedfields (
	id TEXT PRIMARY KEY,
	collectionid TEXT NOT NULL,
	fieldpath TEXT NOT NULL,
	createdutc TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_indexedfields_path ON indexedfields(collectionid, fieldpath);

CREATE TABLE IF NOT EXISTS objectlocks (
	id TEXT PRIMARY KEY,
	collectionid TEXT NOT NULL,
	documentname TEXT NOT NULL,
	hostname TEXT NOT NULL,
	createdutc TEXT NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_objectlocks_name ON objectlocks(collectionid, documentname);
`

// IndexTableDDLTemplate is the DDL template for a dynamic per-key index table
// (spec §4.5): one row per flattened leaf of an indexed key, with indexes
// on documentid, position, createdutc, and the composite (documentid,
// position).
const IndexTableDDLTemplate = `
CREATE TABLE IF NOT EXISTS %[1]s (
	id TEXT PRIMARY KEY,
	documentid TEXT NOT NULL,
	position INTEGER,
	value TEXT NOT NULL,
	createdutc TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_%[1]s_documentid ON %[1]s(documentid);
CREATE INDEX IF NOT EXISTS idx_%[1]s_position ON %[1]s(position);
CREATE INDEX IF NOT EXISTS idx_%[1]s_createdutc ON %[1]s(createdutc);
CREATE INDEX IF NOT EXISTS idx_%[1]s_doc_pos ON %[1]s(documentid, position);
`

// ForwardMigrations is run on startup against an existing database to add
// columns introduced after the original schema (spec §6.2).
// Repository.migrate runs each ALTER as written on every dialect and
// ignores its error, so a column that already exists is left as it is; no
// dialect probes the information schema first.
var ForwardMigrations = []struct {
	Table  string
	Column string
	DDL    string
}{
	{"documents", "contentlength", "ALTER TABLE documents ADD COLUMN contentlength INTEGER NOT NULL DEFAULT 0"},
	{"documents", "sha256hash", "ALTER TABLE documents ADD COLUMN sha256hash TEXT NOT NULL DEFAULT ''"},
	{"collections", "schemaenforcementmode", "ALTER TABLE collections ADD COLUMN schemaenforcementmode TEXT NOT NULL DEFAULT 'None'"},
	{"collections", "indexingmode", "ALTER TABLE collections ADD COLUMN indexingmode TEXT NOT NULL DEFAULT 'None'"},
}
