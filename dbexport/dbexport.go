// Package dbexport reads every table of a database and writes each one to a
// JSON file named after the table.
package dbexport

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Reader runs catalog and table queries over a single database handle that
// stays open for the whole export run.
type Reader struct {
	db      *sql.DB
	dialect Dialect
	source  string
}

// Column is the result-set metadata of one table column.
type Column struct {
	Name          string
	Type          string
	Nullable      bool
	NullableKnown bool
}

// Open connects to the database at path. File backed engines require the file
// to exist so that a mistyped path is not silently created as an empty
// database.
func Open(ctx context.Context, path string, dialect Dialect) (*Reader, error) {
	if dialect == nil {
		dialect = DetectDialect(path)
	}
	source := describeSource(path, dialect)
	if dialect.FileBacked() {
		info, err := statFile(path)
		if err != nil {
			return nil, &ConnectionError{Path: source, Err: err}
		}
		if info.IsDir() {
			return nil, &ConnectionError{Path: source, Err: fmt.Errorf("%s is a directory", path)}
		}
	}
	db, err := openDialect(dialect, path)
	if err != nil {
		return nil, &ConnectionError{Path: source, Err: fmt.Errorf("error creating connection pool: %w", err)}
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &ConnectionError{Path: source, Err: fmt.Errorf("cannot connect to database: %w", err)}
	}
	r := NewReader(db, dialect)
	r.source = source
	return r, nil
}

// NewReader wraps an already opened handle.
func NewReader(db *sql.DB, dialect Dialect) *Reader {
	if dialect == nil {
		dialect = SQLite
	}
	return &Reader{db: db, dialect: dialect, source: dialect.Name()}
}

// Dialect returns the engine dialect the reader was opened with.
func (r *Reader) Dialect() Dialect { return r.dialect }

// Close closes the underlying handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// ListTables returns the name of every table in the catalog, in catalog order.
func (r *Reader) ListTables(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, r.dialect.CatalogQuery())
	if err != nil {
		return nil, &ConnectionError{Path: r.source, Err: fmt.Errorf("error querying tables: %w", err)}
	}
	defer rows.Close()

	tables := []string{}
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, &ConnectionError{Path: r.source, Err: fmt.Errorf("error scanning table name: %w", err)}
		}
		tables = append(tables, tableName)
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Path: r.source, Err: fmt.Errorf("row error: %w", err)}
	}
	return tables, nil
}

// SelectAllQuery builds the unfiltered, unordered scan of table.
func (r *Reader) SelectAllQuery(table string) string {
	return fmt.Sprintf("SELECT * FROM %s", r.dialect.QuoteIdent(table))
}

// ReadAllRows scans every record of table into memory.
func (r *Reader) ReadAllRows(ctx context.Context, table string) ([]Row, error) {
	query, err := r.scanQuery(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Table: table, Query: query, Err: fmt.Errorf("error querying table rows: %w", err)}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &QueryError{Table: table, Query: query, Err: fmt.Errorf("error getting columns: %w", err)}
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &QueryError{Table: table, Query: query, Err: fmt.Errorf("error getting column types: %w", err)}
	}
	typeNames := make([]string, len(types))
	for i, ct := range types {
		typeNames[i] = strings.ToUpper(ct.DatabaseTypeName())
	}

	result := []Row{}
	for rows.Next() {
		row, err := scanRow(rows, cols, typeNames)
		if err != nil {
			return nil, &QueryError{Table: table, Query: query, Err: err}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Table: table, Query: query, Err: fmt.Errorf("row error: %w", err)}
	}
	return result, nil
}

// scanQuery returns the query that reads table. Dialects whose driver rewrites
// values by declared column type get an explicit column list from rawSelector.
func (r *Reader) scanQuery(ctx context.Context, table string) (string, error) {
	rs, ok := r.dialect.(rawSelector)
	if !ok {
		return r.SelectAllQuery(table), nil
	}
	query := r.columnQuery(table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return "", &QueryError{Table: table, Query: query, Err: fmt.Errorf("error querying table rows: %w", err)}
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return "", &QueryError{Table: table, Query: query, Err: fmt.Errorf("error getting columns: %w", err)}
	}
	if len(cols) == 0 {
		return r.SelectAllQuery(table), nil
	}
	return rs.SelectRawQuery(table, cols), nil
}

func (r *Reader) columnQuery(table string) string {
	return r.SelectAllQuery(table) + " WHERE 1 = 0"
}

// Columns returns the column metadata of table without reading any rows.
func (r *Reader) Columns(ctx context.Context, table string) ([]Column, error) {
	query := r.columnQuery(table)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &QueryError{Table: table, Query: query, Err: fmt.Errorf("error querying fields: %w", err)}
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, &QueryError{Table: table, Query: query, Err: fmt.Errorf("error getting column types: %w", err)}
	}
	columns := make([]Column, 0, len(types))
	for _, ct := range types {
		nullable, ok := ct.Nullable()
		columns = append(columns, Column{
			Name:          ct.Name(),
			Type:          ct.DatabaseTypeName(),
			Nullable:      nullable,
			NullableKnown: ok,
		})
	}
	return columns, nil
}

// describeSource names the database in error messages. Server connection
// strings may carry credentials and are never echoed.
func describeSource(path string, dialect Dialect) string {
	if dialect.FileBacked() {
		return path
	}
	return dialect.Name() + " server"
}
