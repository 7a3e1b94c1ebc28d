package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lattice/lattice/internal/lattice/errs"
	"github.com/lattice/lattice/internal/lattice/model"
	"github.com/lattice/lattice/internal/lattice/schema"
	"github.com/lattice/lattice/internal/store"
)

// Repository implements store.Repository over database/sql, driven by a
// Dialect for placeholder syntax, identifier quoting, and DDL feature
// support. One instance serves one backend connection pool (spec
// component F).
type Repository struct {
	db      *sql.DB
	dialect store.Dialect
}

// New wraps an already-open *sql.DB, ensures the fixed schema exists, and
// runs forward migrations (spec §6.2).
func New(ctx context.Context, db *sql.DB, dialect store.Dialect) (*Repository, error) {
	r := &Repository{db: db, dialect: dialect}
	if err := r.ensureSchema(ctx); err != nil {
		return nil, err
	}
	if err := r.migrate(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Repository) ensureSchema(ctx context.Context) error {
	for _, stmt := range splitStatements(FixedSchema) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying fixed schema: %w", err)
		}
	}
	return nil
}

// migrate adds columns introduced after the original schema. Dialects that
// reject a duplicate ADD COLUMN are tolerated: the error is treated as
// "already applied" rather than fatal, since there is no portable way to
// probe every target's information schema here.
func (r *Repository) migrate(ctx context.Context) error {
	for _, m := range ForwardMigrations {
		r.db.ExecContext(ctx, m.DDL)
	}
	return nil
}

func splitStatements(ddl string) []string {
	var out []string
	for _, stmt := range strings.Split(ddl, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

func (r *Repository) Dialect() store.Dialect { return r.dialect }

func (r *Repository) Close() error { return r.db.Close() }

func nowUTC() time.Time { return time.Now().UTC() }

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- Collections ---

func (r *Repository) CreateCollection(ctx context.Context, c *model.Collection) error {
	now := formatTime(nowUTC())
	c.CreatedUtc = parseTime(now)
	c.LastUpdateUtc = c.CreatedUtc
	q := rebind(r.dialect, `INSERT INTO collections
		(id, name, description, documentsdirectory, schemaenforcementmode, indexingmode, enableobjectlocking, objectlockexpiration, createdutc, lastupdateutc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, c.ID, c.Name, c.Description, c.DocumentsDirectory,
		string(c.SchemaEnforcementMode), string(c.IndexingMode), boolToInt(c.EnableObjectLocking), c.ObjectLockExpiration, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("collection name %q already exists", c.Name)
		}
		return errs.Wrap("creating collection", err)
	}
	return nil
}

func (r *Repository) GetCollection(ctx context.Context, id string) (*model.Collection, error) {
	q := rebind(r.dialect, `SELECT id, name, description, documentsdirectory, schemaenforcementmode, indexingmode, enableobjectlocking, objectlockexpiration, createdutc, lastupdateutc FROM collections WHERE id = ?`)
	return r.scanCollection(r.db.QueryRowContext(ctx, q, id))
}

func (r *Repository) GetCollectionByName(ctx context.Context, name string) (*model.Collection, error) {
	q := rebind(r.dialect, `SELECT id, name, description, documentsdirectory, schemaenforcementmode, indexingmode, enableobjectlocking, objectlockexpiration, createdutc, lastupdateutc FROM collections WHERE name = ?`)
	return r.scanCollection(r.db.QueryRowContext(ctx, q, name))
}

func (r *Repository) scanCollection(row *sql.Row) (*model.Collection, error) {
	var c model.Collection
	var description sql.NullString
	var enforcementMode, indexingMode, created, updated string
	var locking int
	err := row.Scan(&c.ID, &c.Name, &description, &c.DocumentsDirectory, &enforcementMode, &indexingMode, &locking, &c.ObjectLockExpiration, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("collection not found")
	}
	if err != nil {
		return nil, errs.Wrap("reading collection", err)
	}
	if description.Valid {
		c.Description = &description.String
	}
	c.SchemaEnforcementMode = model.SchemaEnforcementMode(enforcementMode)
	c.IndexingMode = model.IndexingMode(indexingMode)
	c.EnableObjectLocking = locking != 0
	c.CreatedUtc = parseTime(created)
	c.LastUpdateUtc = parseTime(updated)
	return &c, nil
}

func (r *Repository) ListCollections(ctx context.Context) ([]model.Collection, error) {
	q := `SELECT id, name, description, documentsdirectory, schemaenforcementmode, indexingmode, enableobjectlocking, objectlockexpiration, createdutc, lastupdateutc FROM collections ORDER BY createdutc ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, errs.Wrap("listing collections", err)
	}
	defer rows.Close()

	var out []model.Collection
	for rows.Next() {
		var c model.Collection
		var description sql.NullString
		var enforcementMode, indexingMode, created, updated string
		var locking int
		if err := rows.Scan(&c.ID, &c.Name, &description, &c.DocumentsDirectory, &enforcementMode, &indexingMode, &locking, &c.ObjectLockExpiration, &created, &updated); err != nil {
			return nil, errs.Wrap("scanning collection", err)
		}
		if description.Valid {
			c.Description = &description.String
		}
		c.SchemaEnforcementMode = model.SchemaEnforcementMode(enforcementMode)
		c.IndexingMode = model.IndexingMode(indexingMode)
		c.EnableObjectLocking = locking != 0
		c.CreatedUtc = parseTime(created)
		c.LastUpdateUtc = parseTime(updated)
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateCollectionConstraints(ctx context.Context, id string, mode model.SchemaEnforcementMode) error {
	q := rebind(r.dialect, `UPDATE collections SET schemaenforcementmode = ?, lastupdateutc = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, string(mode), formatTime(nowUTC()), id)
	return checkUpdateOne(res, err, "collection")
}

func (r *Repository) UpdateCollectionIndexing(ctx context.Context, id string, mode model.IndexingMode) error {
	q := rebind(r.dialect, `UPDATE collections SET indexingmode = ?, lastupdateutc = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, q, string(mode), formatTime(nowUTC()), id)
	return checkUpdateOne(res, err, "collection")
}

func (r *Repository) DeleteCollection(ctx context.Context, id string) error {
	q := rebind(r.dialect, `DELETE FROM collections WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return errs.Wrap("deleting collection", err)
	}
	return nil
}

func checkUpdateOne(res sql.Result, err error, entity string) error {
	if err != nil {
		return errs.Wrap("updating "+entity, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errs.NotFoundf("%s not found", entity)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

// --- Schemas ---

func (r *Repository) GetSchemaByHash(ctx context.Context, hash string) (*model.Schema, error) {
	q := rebind(r.dialect, `SELECT id, name, hash, createdutc, lastupdateutc FROM schemas WHERE hash = ?`)
	var s model.Schema
	var name sql.NullString
	var created, updated string
	err := r.db.QueryRowContext(ctx, q, hash).Scan(&s.ID, &name, &s.Hash, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap("reading schema", err)
	}
	if name.Valid {
		s.Name = &name.String
	}
	s.CreatedUtc = parseTime(created)
	s.LastUpdateUtc = parseTime(updated)
	return &s, nil
}

func (r *Repository) CreateSchema(ctx context.Context, s *model.Schema, elements []schema.Element) error {
	now := formatTime(nowUTC())
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("beginning schema transaction", err)
	}
	defer tx.Rollback()

	q := rebind(r.dialect, `INSERT INTO schemas (id, name, hash, createdutc, lastupdateutc) VALUES (?, ?, ?, ?, ?)`)
	if _, err := tx.ExecContext(ctx, q, s.ID, s.Name, s.Hash, now, now); err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("schema hash %q already exists", s.Hash)
		}
		return errs.Wrap("inserting schema", err)
	}

	elemQ := rebind(r.dialect, `INSERT INTO schemaelements (id, schemaid, position, key, datatype, nullable, createdutc, lastupdateutc) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, e := range elements {
		elementID := elementIDFor(s.ID, e.Position)
		if _, err := tx.ExecContext(ctx, elemQ, elementID, s.ID, e.Position, e.Key, e.DataType, boolToInt(e.Nullable), now, now); err != nil {
			return errs.Wrap("inserting schema element", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap("committing schema", err)
	}
	return nil
}

func (r *Repository) GetSchema(ctx context.Context, id string) (*model.Schema, error) {
	q := rebind(r.dialect, `SELECT id, name, hash, createdutc, lastupdateutc FROM schemas WHERE id = ?`)
	var s model.Schema
	var name sql.NullString
	var created, updated string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&s.ID, &name, &s.Hash, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("schema not found")
	}
	if err != nil {
		return nil, errs.Wrap("reading schema", err)
	}
	if name.Valid {
		s.Name = &name.String
	}
	s.CreatedUtc = parseTime(created)
	s.LastUpdateUtc = parseTime(updated)
	return &s, nil
}

func (r *Repository) ListSchemas(ctx context.Context) ([]model.Schema, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, hash, createdutc, lastupdateutc FROM schemas ORDER BY createdutc ASC`)
	if err != nil {
		return nil, errs.Wrap("listing schemas", err)
	}
	defer rows.Close()

	var out []model.Schema
	for rows.Next() {
		var s model.Schema
		var name sql.NullString
		var created, updated string
		if err := rows.Scan(&s.ID, &name, &s.Hash, &created, &updated); err != nil {
			return nil, errs.Wrap("scanning schema", err)
		}
		if name.Valid {
			s.Name = &name.String
		}
		s.CreatedUtc = parseTime(created)
		s.LastUpdateUtc = parseTime(updated)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) ListSchemaElements(ctx context.Context, schemaID string) ([]model.SchemaElement, error) {
	q := rebind(r.dialect, `SELECT id, schemaid, position, key, datatype, nullable, createdutc, lastupdateutc FROM schemaelements WHERE schemaid = ? ORDER BY position ASC`)
	rows, err := r.db.QueryContext(ctx, q, schemaID)
	if err != nil {
		return nil, errs.Wrap("listing schema elements", err)
	}
	defer rows.Close()

	var out []model.SchemaElement
	for rows.Next() {
		var e model.SchemaElement
		var nullable int
		var created, updated string
		if err := rows.Scan(&e.ID, &e.SchemaID, &e.Position, &e.Key, &e.DataType, &nullable, &created, &updated); err != nil {
			return nil, errs.Wrap("scanning schema element", err)
		}
		e.Nullable = nullable != 0
		e.CreatedUtc = parseTime(created)
		e.LastUpdateUtc = parseTime(updated)
		out = append(out, e)
	}
	return out, rows.Err()
}

func elementIDFor(schemaID string, position int) string {
	return fmt.Sprintf("%s-%d", schemaID, position)
}

// --- Documents ---

func (r *Repository) CreateDocument(ctx context.Context, d *model.Document) error {
	now := formatTime(nowUTC())
	d.CreatedUtc = parseTime(now)
	d.LastUpdateUtc = d.CreatedUtc
	q := rebind(r.dialect, `INSERT INTO documents (id, collectionid, schemaid, name, contentlength, sha256hash, createdutc, lastupdateutc) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, d.ID, d.CollectionID, d.SchemaID, d.Name, d.ContentLength, d.SHA256Hash, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("document already exists")
		}
		return errs.Wrap("creating document", err)
	}
	return nil
}

func (r *Repository) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	q := rebind(r.dialect, `SELECT id, collectionid, schemaid, name, contentlength, sha256hash, createdutc, lastupdateutc FROM documents WHERE id = ?`)
	var d model.Document
	var name sql.NullString
	var created, updated string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&d.ID, &d.CollectionID, &d.SchemaID, &name, &d.ContentLength, &d.SHA256Hash, &created, &updated)
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("document not found")
	}
	if err != nil {
		return nil, errs.Wrap("reading document", err)
	}
	if name.Valid {
		d.Name = &name.String
	}
	d.CreatedUtc = parseTime(created)
	d.LastUpdateUtc = parseTime(updated)
	return &d, nil
}

func (r *Repository) ListDocuments(ctx context.Context, collectionID string) ([]model.Document, error) {
	q := rebind(r.dialect, `SELECT id, collectionid, schemaid, name, contentlength, sha256hash, createdutc, lastupdateutc FROM documents WHERE collectionid = ? ORDER BY createdutc ASC`)
	rows, err := r.db.QueryContext(ctx, q, collectionID)
	if err != nil {
		return nil, errs.Wrap("listing documents", err)
	}
	defer rows.Close()

	var out []model.Document
	for rows.Next() {
		var d model.Document
		var name sql.NullString
		var created, updated string
		if err := rows.Scan(&d.ID, &d.CollectionID, &d.SchemaID, &name, &d.ContentLength, &d.SHA256Hash, &created, &updated); err != nil {
			return nil, errs.Wrap("scanning document", err)
		}
		if name.Valid {
			d.Name = &name.String
		}
		d.CreatedUtc = parseTime(created)
		d.LastUpdateUtc = parseTime(updated)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteDocument(ctx context.Context, id string) error {
	q := rebind(r.dialect, `DELETE FROM documents WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return errs.Wrap("deleting document", err)
	}
	if err := r.DeleteLabelsForDocument(ctx, id); err != nil {
		return err
	}
	return r.DeleteTagsForDocument(ctx, id)
}

// --- FieldConstraints ---

func (r *Repository) ListFieldConstraints(ctx context.Context, collectionID string) ([]model.FieldConstraint, error) {
	q := rebind(r.dialect, `SELECT id, collectionid, fieldpath, datatype, required, nullable, regexpattern, minvalue, maxvalue, minlength, maxlength, allowedvalues, arrayelementtype, createdutc, lastupdateutc FROM fieldconstraints WHERE collectionid = ? ORDER BY fieldpath ASC`)
	rows, err := r.db.QueryContext(ctx, q, collectionID)
	if err != nil {
		return nil, errs.Wrap("listing field constraints", err)
	}
	defer rows.Close()

	var out []model.FieldConstraint
	for rows.Next() {
		c, err := scanFieldConstraint(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanFieldConstraint(row scannable) (model.FieldConstraint, error) {
	var c model.FieldConstraint
	var dataType, regexPattern, allowedValues, arrayElementType sql.NullString
	var minValue, maxValue sql.NullFloat64
	var minLength, maxLength sql.NullInt64
	var required, nullable int
	var created, updated string
	err := row.Scan(&c.ID, &c.CollectionID, &c.FieldPath, &dataType, &required, &nullable, &regexPattern,
		&minValue, &maxValue, &minLength, &maxLength, &allowedValues, &arrayElementType, &created, &updated)
	if err != nil {
		return c, errs.Wrap("scanning field constraint", err)
	}
	if dataType.Valid {
		c.DataType = &dataType.String
	}
	c.Required = required != 0
	c.Nullable = nullable != 0
	if regexPattern.Valid {
		c.RegexPattern = &regexPattern.String
	}
	if minValue.Valid {
		c.MinValue = &minValue.Float64
	}
	if maxValue.Valid {
		c.MaxValue = &maxValue.Float64
	}
	if minLength.Valid {
		v := int(minLength.Int64)
		c.MinLength = &v
	}
	if maxLength.Valid {
		v := int(maxLength.Int64)
		c.MaxLength = &v
	}
	if allowedValues.Valid && allowedValues.String != "" {
		json.Unmarshal([]byte(allowedValues.String), &c.AllowedValues)
	}
	if arrayElementType.Valid {
		c.ArrayElementType = &arrayElementType.String
	}
	c.CreatedUtc = parseTime(created)
	c.LastUpdateUtc = parseTime(updated)
	return c, nil
}

func (r *Repository) ReplaceFieldConstraints(ctx context.Context, collectionID string, constraints []model.FieldConstraint) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("beginning constraint transaction", err)
	}
	defer tx.Rollback()

	delQ := rebind(r.dialect, `DELETE FROM fieldconstraints WHERE collectionid = ?`)
	if _, err := tx.ExecContext(ctx, delQ, collectionID); err != nil {
		return errs.Wrap("clearing field constraints", err)
	}

	now := formatTime(nowUTC())
	insQ := rebind(r.dialect, `INSERT INTO fieldconstraints
		(id, collectionid, fieldpath, datatype, required, nullable, regexpattern, minvalue, maxvalue, minlength, maxlength, allowedvalues, arrayelementtype, createdutc, lastupdateutc)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	for _, c := range constraints {
		var allowedValues string
		if len(c.AllowedValues) > 0 {
			b, _ := json.Marshal(c.AllowedValues)
			allowedValues = string(b)
		}
		if _, err := tx.ExecContext(ctx, insQ, c.ID, collectionID, c.FieldPath, c.DataType, boolToInt(c.Required), boolToInt(c.Nullable),
			c.RegexPattern, c.MinValue, c.MaxValue, c.MinLength, c.MaxLength, allowedValues, c.ArrayElementType, now, now); err != nil {
			return errs.Wrap("inserting field constraint", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap("committing field constraints", err)
	}
	return nil
}

// --- IndexedFields ---

func (r *Repository) ListIndexedFields(ctx context.Context, collectionID string) ([]model.IndexedField, error) {
	q := rebind(r.dialect, `SELECT id, collectionid, fieldpath, createdutc FROM indexedfields WHERE collectionid = ? ORDER BY fieldpath ASC`)
	rows, err := r.db.QueryContext(ctx, q, collectionID)
	if err != nil {
		return nil, errs.Wrap("listing indexed fields", err)
	}
	defer rows.Close()

	var out []model.IndexedField
	for rows.Next() {
		var f model.IndexedField
		var created string
		if err := rows.Scan(&f.ID, &f.CollectionID, &f.FieldPath, &created); err != nil {
			return nil, errs.Wrap("scanning indexed field", err)
		}
		f.CreatedUtc = parseTime(created)
		out = append(out, f)
	}
	return out, rows.Err()
}

func (r *Repository) ReplaceIndexedFields(ctx context.Context, collectionID string, fieldPaths []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("beginning indexed-field transaction", err)
	}
	defer tx.Rollback()

	delQ := rebind(r.dialect, `DELETE FROM indexedfields WHERE collectionid = ?`)
	if _, err := tx.ExecContext(ctx, delQ, collectionID); err != nil {
		return errs.Wrap("clearing indexed fields", err)
	}

	now := formatTime(nowUTC())
	insQ := rebind(r.dialect, `INSERT INTO indexedfields (id, collectionid, fieldpath, createdutc) VALUES (?, ?, ?, ?)`)
	for i, path := range fieldPaths {
		id := fmt.Sprintf("%s-%d", collectionID, i)
		if _, err := tx.ExecContext(ctx, insQ, id, collectionID, path, now); err != nil {
			return errs.Wrap("inserting indexed field", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap("committing indexed fields", err)
	}
	return nil
}

// --- IndexTableMappings ---

func (r *Repository) GetIndexTableMapping(ctx context.Context, key string) (*model.IndexTableMapping, error) {
	q := rebind(r.dialect, `SELECT id, key, tablename, createdutc FROM indextablemappings WHERE key = ?`)
	var m model.IndexTableMapping
	var created string
	err := r.db.QueryRowContext(ctx, q, key).Scan(&m.ID, &m.Key, &m.TableName, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap("reading index table mapping", err)
	}
	m.CreatedUtc = parseTime(created)
	return &m, nil
}

func (r *Repository) CreateIndexTableMapping(ctx context.Context, key, tableName string) error {
	q := rebind(r.dialect, `INSERT INTO indextablemappings (id, key, tablename, createdutc) VALUES (?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, fmt.Sprintf("map-%s", tableName), key, tableName, formatTime(nowUTC()))
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("index table mapping already exists for key %q", key)
		}
		return errs.Wrap("creating index table mapping", err)
	}
	return nil
}

func (r *Repository) ListIndexTableMappings(ctx context.Context) ([]model.IndexTableMapping, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, key, tablename, createdutc FROM indextablemappings ORDER BY key ASC`)
	if err != nil {
		return nil, errs.Wrap("listing index table mappings", err)
	}
	defer rows.Close()

	var out []model.IndexTableMapping
	for rows.Next() {
		var m model.IndexTableMapping
		var created string
		if err := rows.Scan(&m.ID, &m.Key, &m.TableName, &created); err != nil {
			return nil, errs.Wrap("scanning index table mapping", err)
		}
		m.CreatedUtc = parseTime(created)
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteIndexTableMapping(ctx context.Context, key string) error {
	q := rebind(r.dialect, `DELETE FROM indextablemappings WHERE key = ?`)
	_, err := r.db.ExecContext(ctx, q, key)
	if err != nil {
		return errs.Wrap("deleting index table mapping", err)
	}
	return nil
}

// --- Labels / Tags ---

func (r *Repository) AddLabel(ctx context.Context, l *model.Label) error {
	q := rebind(r.dialect, `INSERT INTO labels (id, collectionid, documentid, value, createdutc) VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, l.ID, l.CollectionID, l.DocumentID, l.Value, formatTime(nowUTC()))
	if err != nil {
		return errs.Wrap("adding label", err)
	}
	return nil
}

func (r *Repository) ListLabels(ctx context.Context, collectionID, documentID *string) ([]model.Label, error) {
	var q string
	var arg string
	if documentID != nil {
		q = rebind(r.dialect, `SELECT id, collectionid, documentid, value, createdutc FROM labels WHERE documentid = ?`)
		arg = *documentID
	} else if collectionID != nil {
		q = rebind(r.dialect, `SELECT id, collectionid, documentid, value, createdutc FROM labels WHERE collectionid = ?`)
		arg = *collectionID
	} else {
		return nil, errs.InvalidInputf("ListLabels requires a collectionID or documentID")
	}
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, errs.Wrap("listing labels", err)
	}
	defer rows.Close()

	var out []model.Label
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func scanLabel(row scannable) (model.Label, error) {
	var l model.Label
	var collectionID, documentID sql.NullString
	var created string
	if err := row.Scan(&l.ID, &collectionID, &documentID, &l.Value, &created); err != nil {
		return l, errs.Wrap("scanning label", err)
	}
	if collectionID.Valid {
		l.CollectionID = &collectionID.String
	}
	if documentID.Valid {
		l.DocumentID = &documentID.String
	}
	l.CreatedUtc = parseTime(created)
	return l, nil
}

func (r *Repository) DeleteLabelsForDocument(ctx context.Context, documentID string) error {
	q := rebind(r.dialect, `DELETE FROM labels WHERE documentid = ?`)
	_, err := r.db.ExecContext(ctx, q, documentID)
	if err != nil {
		return errs.Wrap("deleting labels", err)
	}
	return nil
}

func (r *Repository) AddTag(ctx context.Context, t *model.Tag) error {
	q := rebind(r.dialect, `INSERT INTO tags (id, collectionid, documentid, key, value, createdutc) VALUES (?, ?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, t.ID, t.CollectionID, t.DocumentID, t.Key, t.Value, formatTime(nowUTC()))
	if err != nil {
		return errs.Wrap("adding tag", err)
	}
	return nil
}

func (r *Repository) ListTags(ctx context.Context, collectionID, documentID *string) ([]model.Tag, error) {
	var q string
	var arg string
	if documentID != nil {
		q = rebind(r.dialect, `SELECT id, collectionid, documentid, key, value, createdutc FROM tags WHERE documentid = ?`)
		arg = *documentID
	} else if collectionID != nil {
		q = rebind(r.dialect, `SELECT id, collectionid, documentid, key, value, createdutc FROM tags WHERE collectionid = ?`)
		arg = *collectionID
	} else {
		return nil, errs.InvalidInputf("ListTags requires a collectionID or documentID")
	}
	rows, err := r.db.QueryContext(ctx, q, arg)
	if err != nil {
		return nil, errs.Wrap("listing tags", err)
	}
	defer rows.Close()

	var out []model.Tag
	for rows.Next() {
		var t model.Tag
		var collectionID, documentID sql.NullString
		var created string
		if err := rows.Scan(&t.ID, &collectionID, &documentID, &t.Key, &t.Value, &created); err != nil {
			return nil, errs.Wrap("scanning tag", err)
		}
		if collectionID.Valid {
			t.CollectionID = &collectionID.String
		}
		if documentID.Valid {
			t.DocumentID = &documentID.String
		}
		t.CreatedUtc = parseTime(created)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *Repository) DeleteTagsForDocument(ctx context.Context, documentID string) error {
	q := rebind(r.dialect, `DELETE FROM tags WHERE documentid = ?`)
	_, err := r.db.ExecContext(ctx, q, documentID)
	if err != nil {
		return errs.Wrap("deleting tags", err)
	}
	return nil
}

// --- ObjectLocks ---

func (r *Repository) TryAcquireLock(ctx context.Context, l *model.ObjectLock) error {
	q := rebind(r.dialect, `INSERT INTO objectlocks (id, collectionid, documentname, hostname, createdutc) VALUES (?, ?, ?, ?, ?)`)
	_, err := r.db.ExecContext(ctx, q, l.ID, l.CollectionID, l.DocumentName, l.Hostname, formatTime(l.CreatedUtc))
	if err != nil {
		if isUniqueViolation(err) {
			return errs.Conflictf("lock already held")
		}
		return errs.Wrap("acquiring lock", err)
	}
	return nil
}

func (r *Repository) GetLock(ctx context.Context, collectionID, documentName string) (*model.ObjectLock, error) {
	q := rebind(r.dialect, `SELECT id, collectionid, documentname, hostname, createdutc FROM objectlocks WHERE collectionid = ? AND documentname = ?`)
	var l model.ObjectLock
	var created string
	err := r.db.QueryRowContext(ctx, q, collectionID, documentName).Scan(&l.ID, &l.CollectionID, &l.DocumentName, &l.Hostname, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap("reading lock", err)
	}
	l.CreatedUtc = parseTime(created)
	return &l, nil
}

func (r *Repository) ReleaseLock(ctx context.Context, lockID string) error {
	q := rebind(r.dialect, `DELETE FROM objectlocks WHERE id = ?`)
	_, err := r.db.ExecContext(ctx, q, lockID)
	if err != nil {
		return errs.Wrap("releasing lock", err)
	}
	return nil
}

func (r *Repository) DeleteLock(ctx context.Context, collectionID, documentName string) error {
	q := rebind(r.dialect, `DELETE FROM objectlocks WHERE collectionid = ? AND documentname = ?`)
	_, err := r.db.ExecContext(ctx, q, collectionID, documentName)
	if err != nil {
		return errs.Wrap("deleting lock", err)
	}
	return nil
}

// --- Dynamic index tables ---

func (r *Repository) EnsureIndexTableSchema(ctx context.Context, tableName string) error {
	ddl := fmt.Sprintf(IndexTableDDLTemplate, tableName)
	for _, stmt := range splitStatements(ddl) {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return errs.Wrap("creating index table "+tableName, err)
		}
	}
	return nil
}

func (r *Repository) DropIndexTableSchema(ctx context.Context, tableName string) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", tableName))
	if err != nil {
		return errs.Wrap("dropping index table "+tableName, err)
	}
	return nil
}

func (r *Repository) InsertIndexEntries(ctx context.Context, tableName string, entries []model.IndexTableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	q := rebind(r.dialect, fmt.Sprintf(`INSERT INTO %s (id, documentid, position, value, createdutc) VALUES (?, ?, ?, ?, ?)`, tableName))
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("beginning index insert transaction", err)
	}
	defer tx.Rollback()

	now := formatTime(nowUTC())
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, q, e.ID, e.DocumentID, e.Position, e.Value, now); err != nil {
			return errs.Wrap("inserting index entry into "+tableName, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap("committing index entries", err)
	}
	return nil
}

func (r *Repository) DeleteIndexEntriesForDocument(ctx context.Context, tableName, documentID string) error {
	q := rebind(r.dialect, fmt.Sprintf(`DELETE FROM %s WHERE documentid = ?`, tableName))
	_, err := r.db.ExecContext(ctx, q, documentID)
	if err != nil {
		return errs.Wrap("deleting index entries from "+tableName, err)
	}
	return nil
}

func (r *Repository) DeleteIndexEntriesForCollection(ctx context.Context, tableName, collectionID string) (int64, error) {
	q := rebind(r.dialect, fmt.Sprintf(
		`DELETE FROM %s WHERE documentid IN (SELECT id FROM documents WHERE collectionid = ?)`, tableName))
	res, err := r.db.ExecContext(ctx, q, collectionID)
	if err != nil {
		return 0, errs.Wrap("deleting collection index entries from "+tableName, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (r *Repository) CountIndexEntries(ctx context.Context, tableName string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, tableName)).Scan(&n)
	if err != nil {
		return 0, errs.Wrap("counting index entries in "+tableName, err)
	}
	return n, nil
}

// --- Generic execute surface (design note §9: ExecuteQuery/ExecuteNonQuery/ExecuteTransaction) ---

func (r *Repository) ExecuteQuery(ctx context.Context, stmt store.Statement) ([]store.Row, error) {
	rows, err := r.db.QueryContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return nil, errs.Wrap("executing query", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, errs.Wrap("reading columns", err)
	}

	var out []store.Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errs.Wrap("scanning row", err)
		}
		row := make(store.Row, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *Repository) ExecuteNonQuery(ctx context.Context, stmt store.Statement) (int64, error) {
	res, err := r.db.ExecContext(ctx, stmt.SQL, stmt.Args...)
	if err != nil {
		return 0, errs.Wrap("executing statement", err)
	}
	return res.RowsAffected()
}

func (r *Repository) ExecuteTransaction(ctx context.Context, stmts []store.Statement) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap("beginning transaction", err)
	}
	defer tx.Rollback()

	for _, s := range stmts {
		if _, err := tx.ExecContext(ctx, s.SQL, s.Args...); err != nil {
			return errs.Wrap("executing statement in transaction", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errs.Wrap("committing transaction", err)
	}
	return nil
}

var _ store.Repository = (*Repository)(nil)
