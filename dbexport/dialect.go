package dbexport

import (
	"context"
	"database/sql/driver"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/marcboeker/go-duckdb"
)

// Dialect describes how to reach one database engine: which database/sql
// driver to use, how to build its DSN, where its table catalog lives and how
// identifiers are quoted.
type Dialect interface {
	Name() string
	DriverName() string
	// DSN turns the user supplied database path into a read-only data source name.
	DSN(path string) string
	// FileBacked reports whether the path names a file on disk.
	FileBacked() bool
	CatalogQuery() string
	QuoteIdent(name string) string
}

// rawSelector is implemented by dialects whose driver converts values based on
// the declared column type. SelectRawQuery reads the stored values instead.
type rawSelector interface {
	SelectRawQuery(table string, columns []string) string
}

// connectorDialect is implemented by dialects that cannot express the path in
// a DSN and open through a driver.Connector instead.
type connectorDialect interface {
	Connector(path string) (driver.Connector, error)
}

var (
	SQLite    Dialect = sqliteDialect{}
	DuckDB    Dialect = duckDBDialect{}
	SQLServer Dialect = sqlServerDialect{}
)

// DialectByName resolves an engine name as given on the command line.
func DialectByName(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "duckdb":
		return DuckDB, nil
	case "sqlserver", "mssql":
		return SQLServer, nil
	default:
		return nil, fmt.Errorf("unknown engine %q (expected sqlite3, duckdb or sqlserver)", name)
	}
}

// DetectDialect guesses the engine from the database path. Anything that is
// not recognisably DuckDB or SQL Server is treated as SQLite.
func DetectDialect(path string) Dialect {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "sqlserver://") {
		return SQLServer
	}
	switch filepath.Ext(lower) {
	case ".duckdb", ".ddb":
		return DuckDB
	}
	return SQLite
}

// quoteWith wraps name in open/close and doubles every close character inside it.
func quoteWith(name, open, close string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }
func (sqliteDialect) DriverName() string { return "sqlite3" }
func (sqliteDialect) FileBacked() bool { return true }

// Characters with a meaning in SQLite URI filenames are percent-encoded.
var sqliteURIEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

func (sqliteDialect) DSN(path string) string {
	return "file:" + sqliteURIEscaper.Replace(path) + "?mode=ro"
}

func (sqliteDialect) CatalogQuery() string {
	return `SELECT name FROM sqlite_master WHERE type='table'`
}

func (sqliteDialect) QuoteIdent(name string) string { return quoteWith(name, `"`, `"`) }

// SelectRawQuery lists every column behind a unary plus. The expression has no
// declared type, so mattn/go-sqlite3 returns the stored value instead of
// parsing DATE, DATETIME, TIMESTAMP and BOOLEAN columns.
func (d sqliteDialect) SelectRawQuery(table string, columns []string) string {
	exprs := make([]string, len(columns))
	for i, col := range columns {
		quoted := d.QuoteIdent(col)
		exprs[i] = "+" + quoted + " AS " + quoted
	}
	return fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), d.QuoteIdent(table))
}

type duckDBDialect struct{}

func (duckDBDialect) Name() string { return "duckdb" }
func (duckDBDialect) DriverName() string { return "duckdb" }
func (duckDBDialect) FileBacked() bool { return true }

// DSN is empty: go-duckdb reads the file path up to the first '?' without
// unescaping, so the file is attached by Connector instead.
func (duckDBDialect) DSN(path string) string { return "" }

// duckDBAlias is the catalog name the database file is attached under.
const duckDBAlias = "export_source"

// Connector opens an in-memory DuckDB and attaches the file at path read-only.
// The path travels as a string literal, so any character is allowed.
func (duckDBDialect) Connector(path string) (driver.Connector, error) {
	attach := fmt.Sprintf("ATTACH IF NOT EXISTS %s AS %s (READ_ONLY)", quoteWith(path, "'", "'"), duckDBAlias)
	return duckdb.NewConnector("", func(execer driver.ExecerContext) error {
		for _, query := range []string{attach, "USE " + duckDBAlias} {
			if _, err := execer.ExecContext(context.Background(), query, nil); err != nil {
				return fmt.Errorf("error attaching database: %w", err)
			}
		}
		return nil
	})
}

// CatalogQuery lists the tables of the default schema only; unqualified names
// resolve against it.
func (duckDBDialect) CatalogQuery() string {
	return `SELECT table_name FROM information_schema.tables WHERE table_type = 'BASE TABLE' AND table_catalog = current_database() AND table_schema = current_schema()`
}

func (duckDBDialect) QuoteIdent(name string) string { return quoteWith(name, `"`, `"`) }

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return "sqlserver" }
func (sqlServerDialect) DriverName() string { return "sqlserver" }
func (sqlServerDialect) FileBacked() bool { return false }
func (sqlServerDialect) DSN(path string) string { return path }

// CatalogQuery lists the tables of the user's default schema, the one bare
// names in SELECT * FROM [name] resolve against.
func (sqlServerDialect) CatalogQuery() string {
	return `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_TYPE = 'BASE TABLE' AND TABLE_SCHEMA = SCHEMA_NAME()`
}

func (sqlServerDialect) QuoteIdent(name string) string { return quoteWith(name, "[", "]") }
