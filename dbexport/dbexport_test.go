package dbexport_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"sqlite2json/dbexport"

	"github.com/DATA-DOG/go-sqlmock"
)

const catalogQuery = `SELECT name FROM sqlite_master WHERE type='table'`

func newMockReader(t *testing.T) (*dbexport.Reader, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return dbexport.NewReader(db, dbexport.SQLite), mock
}

func expectSelect(mock sqlmock.Sqlmock, query string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(regexp.QuoteMeta(query))
}

// columnQuery is the lookup of a table's column names.
func columnQuery(table string) string {
	return "SELECT * FROM " + dbexport.SQLite.QuoteIdent(table) + " WHERE 1 = 0"
}

// expectTable registers the column lookup of table followed by its scan.
func expectTable(mock sqlmock.Sqlmock, table string, cols ...string) *sqlmock.ExpectedQuery {
	expectSelect(mock, columnQuery(table)).WillReturnRows(sqlmock.NewRows(cols))
	exprs := make([]string, len(cols))
	for i, col := range cols {
		quoted := dbexport.SQLite.QuoteIdent(col)
		exprs[i] = "+" + quoted + " AS " + quoted
	}
	return expectSelect(mock, "SELECT "+strings.Join(exprs, ", ")+" FROM "+dbexport.SQLite.QuoteIdent(table))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestListTables_Success(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("foo").AddRow("bar"))

	tables, err := r.ListTables(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Join(tables, ",") != "foo,bar" {
		t.Errorf("expected catalog order foo,bar, got: %v", tables)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestListTables_Empty(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}))

	tables, err := r.ListTables(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tables == nil || len(tables) != 0 {
		t.Errorf("expected empty non-nil slice, got: %#v", tables)
	}
}

func TestListTables_DBError(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnError(errors.New("file is not a database"))

	_, err := r.ListTables(context.Background())
	var cerr *dbexport.ConnectionError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConnectionError, got: %v", err)
	}
	if !strings.Contains(err.Error(), "error querying tables") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestListTables_ScanError(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow(nil))

	_, err := r.ListTables(context.Background())
	if err == nil || !strings.Contains(err.Error(), "error scanning table name") {
		t.Errorf("expected scan error, got: %v", err)
	}
}

func TestReadAllRows_Success(t *testing.T) {
	r, mock := newMockReader(t)
	expectTable(mock, "users", "id", "name").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"),
	)

	rows, err := r.ReadAllRows(context.Background(), "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
	data, err := dbexport.EncodeRows(rows, false)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	want := `[{"id":1,"name":"a"},{"id":2,"name":"b"}]`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}
}

func TestReadAllRows_ScanDropsDeclaredTypes(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, `SELECT * FROM "ev" WHERE 1 = 0`).WillReturnRows(sqlmock.NewRows([]string{"d", "ts"}))
	expectSelect(mock, `SELECT +"d" AS "d", +"ts" AS "ts" FROM "ev"`).WillReturnRows(
		sqlmock.NewRows([]string{"d", "ts"}).AddRow("2024-05-13", 1700000000),
	)

	rows, err := r.ReadAllRows(context.Background(), "ev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := dbexport.EncodeRows(rows, false)
	if string(data) != `[{"d":"2024-05-13","ts":1700000000}]` {
		t.Errorf("unexpected rows: %s", data)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReadAllRows_NoRows(t *testing.T) {
	r, mock := newMockReader(t)
	expectTable(mock, "empty", "a", "b").WillReturnRows(sqlmock.NewRows([]string{"a", "b"}))

	rows, err := r.ReadAllRows(context.Background(), "empty")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, _ := dbexport.EncodeRows(rows, false)
	if string(data) != "[]" {
		t.Errorf("expected [], got %s", data)
	}
}

func TestReadAllRows_DuplicateColumnsOverwrite(t *testing.T) {
	r, mock := newMockReader(t)
	expectTable(mock, "dups", "id", "name", "id").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name", "id"}).AddRow(1, "x", 2),
	)

	rows, err := r.ReadAllRows(context.Background(), "dups")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row := rows[0]
	if row.Len() != 2 {
		t.Fatalf("expected 2 distinct columns, got %d", row.Len())
	}
	data, _ := row.MarshalJSON()
	if string(data) != `{"id":2,"name":"x"}` {
		t.Errorf("expected later value at first position, got %s", data)
	}
}

func TestReadAllRows_QuotesTableName(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, `SELECT * FROM "it's ""quoted""" WHERE 1 = 0`).WillReturnRows(sqlmock.NewRows([]string{`a"b`}))
	expectSelect(mock, `SELECT +"a""b" AS "a""b" FROM "it's ""quoted"""`).WillReturnRows(sqlmock.NewRows([]string{`a"b`}).AddRow("v"))

	if _, err := r.ReadAllRows(context.Background(), `it's "quoted"`); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReadAllRows_QueryError(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, columnQuery("gone")).WillReturnError(errors.New("no such table: gone"))

	_, err := r.ReadAllRows(context.Background(), "gone")
	var qerr *dbexport.QueryError
	if !errors.As(err, &qerr) {
		t.Fatalf("expected QueryError, got: %v", err)
	}
	if qerr.Table != "gone" || qerr.Query != `SELECT * FROM "gone" WHERE 1 = 0` {
		t.Errorf("unexpected QueryError fields: %+v", qerr)
	}
	if !strings.Contains(err.Error(), "error querying table rows") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestReadAllRows_RowError(t *testing.T) {
	r, mock := newMockReader(t)
	rows := sqlmock.NewRows([]string{"a"}).AddRow("1").AddRow("2").RowError(1, io.ErrUnexpectedEOF)
	expectTable(mock, "t", "a").WillReturnRows(rows)

	_, err := r.ReadAllRows(context.Background(), "t")
	var qerr *dbexport.QueryError
	if !errors.As(err, &qerr) || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("expected QueryError wrapping the row error, got: %v", err)
	}
}

func TestExporter_Run(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("users").AddRow("empty"))
	expectTable(mock, "users", "id", "name").WillReturnRows(
		sqlmock.NewRows([]string{"id", "name"}).AddRow(1, "a").AddRow(2, "b"),
	)
	expectTable(mock, "empty", "id").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	dir := t.TempDir()
	summary, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: dir}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Exported) != 2 {
		t.Fatalf("expected 2 exported tables, got %+v", summary.Exported)
	}
	if summary.Exported[0].Rows != 2 || summary.Exported[1].Rows != 0 {
		t.Errorf("unexpected row counts: %+v", summary.Exported)
	}
	if got := readFile(t, filepath.Join(dir, "users.json")); got != `[{"id":1,"name":"a"},{"id":2,"name":"b"}]` {
		t.Errorf("unexpected users.json: %s", got)
	}
	if got := readFile(t, filepath.Join(dir, "empty.json")); got != "[]" {
		t.Errorf("unexpected empty.json: %s", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestExporter_Run_NoTables(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}))

	dir := t.TempDir()
	summary, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: dir}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Exported) != 0 {
		t.Errorf("expected nothing exported, got %+v", summary.Exported)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no output files, got %d", len(entries))
	}
}

func TestExporter_Run_AbortKeepsWrittenFiles(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow("b").AddRow("c"))
	expectTable(mock, "a", "x").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))
	expectSelect(mock, columnQuery("b")).WillReturnError(errors.New("no such table: b"))

	dir := t.TempDir()
	summary, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: dir}).Run(context.Background())
	var qerr *dbexport.QueryError
	if !errors.As(err, &qerr) || qerr.Table != "b" {
		t.Fatalf("expected QueryError for b, got: %v", err)
	}
	if len(summary.Exported) != 1 {
		t.Errorf("expected one exported table before the failure, got %+v", summary.Exported)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.json")); err != nil {
		t.Errorf("expected a.json to remain on disk: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "c.json")); !os.IsNotExist(err) {
		t.Errorf("expected c.json not to be written, got: %v", err)
	}
}

func TestExporter_Run_SkipContinues(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow("b").AddRow("c"))
	expectTable(mock, "a", "x").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))
	expectSelect(mock, columnQuery("b")).WillReturnError(errors.New("no such table: b"))
	expectTable(mock, "c", "x").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(3))

	dir := t.TempDir()
	summary, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: dir, OnError: dbexport.Skip}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Exported) != 2 || len(summary.Skipped) != 1 || summary.Skipped[0].Table != "b" {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if got := readFile(t, filepath.Join(dir, "c.json")); got != `[{"x":3}]` {
		t.Errorf("unexpected c.json: %s", got)
	}
}

func TestExporter_Run_TableSubset(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a").AddRow("b"))
	expectTable(mock, "b", "x").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	dir := t.TempDir()
	summary, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: dir, Tables: []string{"b"}}).Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Exported) != 1 || summary.Exported[0].Table != "b" {
		t.Errorf("expected only b exported, got %+v", summary.Exported)
	}
}

func TestExporter_Run_UnknownTable(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))

	dir := t.TempDir()
	_, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: dir, Tables: []string{"A"}}).Run(context.Background())
	if !errors.Is(err, dbexport.ErrTableNotInCatalog) {
		t.Errorf("expected ErrTableNotInCatalog, got: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("expected no output files, got %d", len(entries))
	}
}

func TestExporter_Run_Cancelled(t *testing.T) {
	r, mock := newMockReader(t)
	expectSelect(mock, catalogQuery).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("a"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: t.TempDir()}).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
}

func TestExporter_ExportTable_WriteError(t *testing.T) {
	r, mock := newMockReader(t)
	expectTable(mock, "a", "x").WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	missing := filepath.Join(t.TempDir(), "does", "not", "exist")
	_, err := dbexport.NewExporter(r, dbexport.Options{OutputDir: missing}).ExportTable(context.Background(), "a")
	var ioErr *dbexport.IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError, got: %v", err)
	}
	if ioErr.Path != filepath.Join(missing, "a.json") {
		t.Errorf("unexpected path: %s", ioErr.Path)
	}
}

func TestOutputPath(t *testing.T) {
	path, err := dbexport.OutputPath("out", "users")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join("out", "users.json") {
		t.Errorf("expected separator between folder and file, got %s", path)
	}
	for _, name := range []string{"a/b", `a\b`, "../up"} {
		if _, err := dbexport.OutputPath("out", name); !errors.Is(err, dbexport.ErrUnsafeFileName) {
			t.Errorf("expected ErrUnsafeFileName for %q, got: %v", name, err)
		}
	}
}
