package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Embedded SQLite driver (same WASM-based driver the teacher uses for
	// its own embedded file database).
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	// Dolt speaks the MySQL wire protocol through its own embedded driver.
	_ "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/lattice/lattice/internal/store"
)

// Backend names a supported relational backend (spec §1).
type Backend string

const (
	BackendSQLite     Backend = "sqlite"
	BackendDolt       Backend = "dolt"
	BackendMySQL      Backend = "mysql"
	BackendPostgres   Backend = "postgres"
	BackendSQLServer  Backend = "sqlserver"
)

// Open connects to the named backend and returns a ready Repository with
// its fixed schema applied.
func Open(ctx context.Context, backend Backend, dsn string) (*Repository, error) {
	switch backend {
	case BackendSQLite:
		return openSQLite(ctx, dsn)
	case BackendDolt:
		return openDolt(ctx, dsn)
	case BackendMySQL:
		return openGeneric(ctx, "mysql", dsn, MySQL)
	case BackendPostgres:
		return openGeneric(ctx, "postgres", dsn, Postgres)
	case BackendSQLServer:
		return openGeneric(ctx, "sqlserver", dsn, SQLServer)
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}

// openSQLite mirrors the teacher's own embedded-database connection style:
// WAL journaling, a 5s busy timeout, NORMAL synchronous mode, foreign keys
// on, and a single-writer connection pool.
func openSQLite(ctx context.Context, dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return New(ctx, db, SQLite)
}

// openDolt connects through dolthub/driver, the version-controlled embedded
// file database that speaks the MySQL wire protocol (spec DOMAIN STACK).
func openDolt(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("dolt", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening dolt database: %w", err)
	}
	return New(ctx, db, Dolt)
}

func openGeneric(ctx context.Context, driverName, dsn string, dialect store.Dialect) (*Repository, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening %s database: %w", driverName, err)
	}
	return New(ctx, db, dialect)
}
