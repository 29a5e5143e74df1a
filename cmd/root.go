package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"sqlite2json/dbexport"

	"github.com/spf13/cobra"
)

const usageLine = "Usage: sqlite2json -d <database> -o <output_folder>"

// exitFunc is replaced in tests.
var exitFunc = os.Exit

// usageError marks invalid invocations; they exit with status 2.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func newUsageError(format string, a ...interface{}) error {
	return &usageError{msg: fmt.Sprintf(format, a...)}
}

// usageArgs turns positional argument errors into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{msg: err.Error()}
		}
		return nil
	}
}

// rootOptions holds every flag of the command tree.
type rootOptions struct {
	Database   string
	Engine     string
	Verbose    bool
	Output     string
	Tables     []string
	SkipErrors bool
	Pretty     bool
	Blob       string

	logger *slog.Logger
}

// NewRootCmd builds the sqlite2json command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sqlite2json -d <database> -o <output_folder>",
		Short: "Export every table of a database to JSON files",
		Long: `Export every table of a SQLite (or DuckDB / SQL Server) database into
one JSON file per table. Each file is named <table>.json and holds a JSON
array with one object per row.`,
		Example: `  sqlite2json -d app.db -o ./json
  sqlite2json -d warehouse.duckdb -o ./json --tables orders,customers --pretty
  sqlite2json tables -d app.db`,
		Args:          usageArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			opts.logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts)
		},
	}
	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.Database, "database", "d", "", "Path to the database file (env: "+envDatabase+")")
	pf.StringVar(&opts.Engine, "engine", "", "Database engine: sqlite3, duckdb, sqlserver (env: "+envEngine+"; default: detect from path)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable debug logging")

	f := cmd.Flags()
	f.StringVarP(&opts.Output, "output", "o", "", "Output folder for the JSON files (env: "+envOutput+")")
	f.StringSliceVar(&opts.Tables, "tables", nil, "Export only these tables (comma-separated)")
	f.BoolVar(&opts.SkipErrors, "skip-errors", false, "Skip tables that cannot be read instead of aborting")
	f.BoolVar(&opts.Pretty, "pretty", false, "Indent the JSON output")
	f.StringVar(&opts.Blob, "blob", "base64", "Encoding for binary values: base64, text")

	cmd.AddCommand(newTablesCmd(opts))
	cmd.AddCommand(newFieldsCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

func runExport(cmd *cobra.Command, opts *rootOptions) error {
	src, err := resolveSource(opts)
	if err != nil {
		return err
	}
	output, err := resolveOutput(opts)
	if err != nil {
		return err
	}
	blob, err := dbexport.ParseBlobMode(opts.Blob)
	if err != nil {
		return &usageError{msg: err.Error()}
	}
	if err := os.MkdirAll(output, 0o755); err != nil {
		return &dbexport.IOError{Path: output, Err: fmt.Errorf("error creating output folder: %w", err)}
	}

	exportOpts := dbexport.Options{
		OutputDir: output,
		Dialect:   src.Dialect,
		Tables:    opts.Tables,
		Indent:    opts.Pretty,
		Blob:      blob,
		Logger:    opts.logger,
	}
	if opts.SkipErrors {
		exportOpts.OnError = dbexport.Skip
	}
	return withReader(cmd.Context(), src, func(ctx context.Context, r *dbexport.Reader) error {
		summary, err := dbexport.NewExporter(r, exportOpts).Run(ctx)
		printSummary(cmd.OutOrStdout(), summary)
		if err != nil {
			return withTableHint(err)
		}
		return nil
	})
}

func printSummary(w io.Writer, summary *dbexport.Summary) {
	if summary == nil {
		return
	}
	for _, res := range summary.Exported {
		fmt.Fprintf(w, "Table '%s' data written to %s (%d rows) in %s\n", res.Table, res.Path, res.Rows, res.Elapsed)
	}
	for _, skipped := range summary.Skipped {
		fmt.Fprintf(w, "Table '%s' skipped: %v\n", skipped.Table, skipped.Err)
	}
	fmt.Fprintf(w, "Total tables exported: %d\n", len(summary.Exported))
}

// run executes the command tree with args and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderr, err)
		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(stderr, usageLine)
			return 2
		}
		return 1
	}
	return 0
}

func Execute() {
	if code := run(os.Args[1:], os.Stdout, os.Stderr); code != 0 {
		exitFunc(code)
	}
}
