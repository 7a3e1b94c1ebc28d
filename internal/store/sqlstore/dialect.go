// Package sqlstore implements the store.Repository contract on top of
// database/sql, parameterized by a store.Dialect so the same engine drives
// the embedded file DB (SQLite via ncruces/go-sqlite3, or Dolt via
// dolthub/driver), MySQL, PostgreSQL, and SQL Server (spec §6.2).
package sqlstore

import (
	"fmt"
	"strings"

	"github.com/lattice/lattice/internal/store"
)

// sqliteDialect targets the embedded ncruces/go-sqlite3 driver, matching
// the connection style internal/storage/convex used for its own embedded
// file database.
type sqliteDialect struct{}

func (sqliteDialect) Name() string                        { return "sqlite" }
func (sqliteDialect) Placeholder(int) string               { return "?" }
func (sqliteDialect) QuoteIdent(ident string) string       { return `"` + ident + `"` }
func (sqliteDialect) SupportsCreateTableIfNotExists() bool { return true }
func (sqliteDialect) SupportsAddColumnIfNotExists() bool   { return false }

// doltDialect targets dolthub/driver, the version-controlled embedded file
// database. It speaks the MySQL wire protocol and shares MySQL's SQL
// surface (spec DOMAIN STACK: Dolt reuses the MySQL dialect's SQL).
type doltDialect struct{ mysqlDialect }

func (doltDialect) Name() string { return "dolt" }

// mysqlDialect targets go-sql-driver/mysql.
type mysqlDialect struct{}

func (mysqlDialect) Name() string                        { return "mysql" }
func (mysqlDialect) Placeholder(int) string               { return "?" }
func (mysqlDialect) QuoteIdent(ident string) string       { return "`" + ident + "`" }
func (mysqlDialect) SupportsCreateTableIfNotExists() bool { return true }
func (mysqlDialect) SupportsAddColumnIfNotExists() bool   { return false }

// postgresDialect targets lib/pq. Placeholders are numbered ($1, $2, ...)
// rather than positional, so rebind must renumber rather than just repeat.
type postgresDialect struct{}

func (postgresDialect) Name() string                        { return "postgres" }
func (postgresDialect) Placeholder(n int) string             { return fmt.Sprintf("$%d", n) }
func (postgresDialect) QuoteIdent(ident string) string        { return `"` + ident + `"` }
func (postgresDialect) SupportsCreateTableIfNotExists() bool  { return true }
func (postgresDialect) SupportsAddColumnIfNotExists() bool    { return true }

// sqlServerDialect targets microsoft/go-mssqldb. Grounded by dependency
// name only in the retrieved examples (no SQL Server source was present in
// the pack) — its DDL/placeholder conventions follow the driver's documented
// @pN numbered-parameter style.
type sqlServerDialect struct{}

func (sqlServerDialect) Name() string                       { return "sqlserver" }
func (sqlServerDialect) Placeholder(n int) string            { return fmt.Sprintf("@p%d", n) }
func (sqlServerDialect) QuoteIdent(ident string) string       { return "[" + ident + "]" }
func (sqlServerDialect) SupportsCreateTableIfNotExists() bool { return false }
func (sqlServerDialect) SupportsAddColumnIfNotExists() bool   { return false }

var (
	SQLite     store.Dialect = sqliteDialect{}
	Dolt       store.Dialect = doltDialect{}
	MySQL      store.Dialect = mysqlDialect{}
	Postgres   store.Dialect = postgresDialect{}
	SQLServer  store.Dialect = sqlServerDialect{}
)

// rebind rewrites a query written with "?" placeholders into the target
// dialect's placeholder syntax, in positional order. SQLite/MySQL/Dolt
// already use "?" so this is a no-op for them.
func rebind(d store.Dialect, query string) string {
	if d.Placeholder(1) == "?" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(d.Placeholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
