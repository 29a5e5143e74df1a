package cmd

import (
	"context"
	"fmt"

	"sqlite2json/dbexport"

	"github.com/spf13/cobra"
)

func newFieldsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <table>",
		Short: "List all fields in the specified table",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			table := args[0]
			src, err := resolveSource(opts)
			if err != nil {
				return err
			}
			return withReader(cmd.Context(), src, func(ctx context.Context, r *dbexport.Reader) error {
				cols, err := r.Columns(ctx, table)
				if err != nil {
					return withTableHint(err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Fields in table '%s':\n", table)
				fmt.Fprintln(out, "Column Name\tType\tNullable")
				for _, col := range cols {
					fmt.Fprintf(out, "%s\t%s\t%s\n", col.Name, col.Type, nullableLabel(col))
				}
				return nil
			})
		},
	}
}

func nullableLabel(col dbexport.Column) string {
	switch {
	case !col.NullableKnown:
		return "UNKNOWN"
	case col.Nullable:
		return "YES"
	default:
		return "NO"
	}
}
