package dbexport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrorPolicy decides what happens when a single table cannot be exported.
type ErrorPolicy int

const (
	// Abort stops the run at the first failing table.
	Abort ErrorPolicy = iota
	// Skip records tables that fail to read or encode, or whose name is not a
	// usable file name, and moves on. Connection and write errors still abort.
	Skip
)

// Options configures an export run.
type Options struct {
	OutputDir string
	// Dialect overrides detection from the database path.
	Dialect Dialect
	// Tables restricts the run to these catalog entries. Empty means all.
	Tables  []string
	OnError ErrorPolicy
	Indent  bool
	Blob    BlobMode
	Logger  *slog.Logger
}

// TableResult describes one exported table.
type TableResult struct {
	Table   string
	Path    string
	Rows    int
	Bytes   int
	Elapsed time.Duration
}

// SkippedTable is a table left out under the Skip policy.
type SkippedTable struct {
	Table string
	Err   error
}

// Summary collects the outcome of a run.
type Summary struct {
	Exported []TableResult
	Skipped  []SkippedTable
}

// Exporter writes the tables of a Reader to an output directory.
type Exporter struct {
	reader *Reader
	opts   Options
	logger *slog.Logger
}

// NewExporter returns an exporter over r. The reader is not closed by the
// exporter.
func NewExporter(r *Reader, opts Options) *Exporter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Exporter{reader: r, opts: opts, logger: logger}
}

// ExportDatabase opens the database at dbPath, exports its tables to
// opts.OutputDir and closes the connection once every table is done.
func ExportDatabase(ctx context.Context, dbPath string, opts Options) (summary *Summary, err error) {
	r, err := Open(ctx, dbPath, opts.Dialect)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = &ConnectionError{Path: r.source, Err: fmt.Errorf("error closing database: %w", cerr)}
		}
	}()
	return NewExporter(r, opts).Run(ctx)
}

// Run lists the catalog and exports each table in catalog order. On error the
// summary still lists the tables written so far.
func (e *Exporter) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{}
	catalog, err := e.reader.ListTables(ctx)
	if err != nil {
		return summary, err
	}
	tables, err := selectTables(catalog, e.opts.Tables)
	if err != nil {
		return summary, err
	}
	e.logger.Debug("catalog read", "tables", len(catalog), "selected", len(tables))

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("export interrupted: %w", err)
		}
		res, err := e.ExportTable(ctx, table)
		if err != nil {
			if e.opts.OnError == Skip && skippable(err) {
				e.logger.Warn("skipping table", "table", table, "error", err)
				summary.Skipped = append(summary.Skipped, SkippedTable{Table: table, Err: err})
				continue
			}
			return summary, err
		}
		summary.Exported = append(summary.Exported, res)
	}
	return summary, nil
}

// ExportTable reads table completely and writes it to its output file.
func (e *Exporter) ExportTable(ctx context.Context, table string) (TableResult, error) {
	start := time.Now()
	res := TableResult{Table: table}
	path, err := OutputPath(e.opts.OutputDir, table)
	if err != nil {
		return res, err
	}
	res.Path = path

	rows, err := e.reader.ReadAllRows(ctx, table)
	if err != nil {
		return res, err
	}
	if n := normalizeRows(rows, e.opts.Blob); n > 0 {
		e.logger.Debug("non-finite floats written as null", "table", table, "values", n)
	}
	data, err := EncodeRows(rows, e.opts.Indent)
	if err != nil {
		return res, &EncodeError{Table: table, Err: err}
	}
	if err := WriteFileOutput(path, data); err != nil {
		return res, err
	}

	res.Rows = len(rows)
	res.Bytes = len(data)
	res.Elapsed = time.Since(start)
	e.logger.Info("table exported", "table", table, "rows", res.Rows, "path", path, "elapsed", res.Elapsed)
	return res, nil
}

// selectTables keeps the catalog entries named in wanted, in catalog order.
// Every wanted name must match a catalog entry exactly.
func selectTables(catalog, wanted []string) ([]string, error) {
	if len(wanted) == 0 {
		return catalog, nil
	}
	want := make(map[string]bool, len(wanted))
	for _, name := range wanted {
		want[name] = true
	}
	inCatalog := make(map[string]bool, len(catalog))
	var selected []string
	for _, name := range catalog {
		inCatalog[name] = true
		if want[name] {
			selected = append(selected, name)
		}
	}
	for _, name := range wanted {
		if !inCatalog[name] {
			return nil, &QueryError{Table: name, Err: ErrTableNotInCatalog}
		}
	}
	return selected, nil
}

func skippable(err error) bool {
	var qerr *QueryError
	var eerr *EncodeError
	return errors.As(err, &qerr) || errors.As(err, &eerr) || errors.Is(err, ErrUnsafeFileName)
}
