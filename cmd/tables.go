package cmd

import (
	"context"
	"fmt"

	"sqlite2json/dbexport"

	"github.com/spf13/cobra"
)

func newTablesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List all tables in the database",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := resolveSource(opts)
			if err != nil {
				return err
			}
			return withReader(cmd.Context(), src, func(ctx context.Context, r *dbexport.Reader) error {
				tables, err := r.ListTables(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "Tables in the database:")
				for _, table := range tables {
					fmt.Fprintln(out, table)
				}
				return nil
			})
		},
	}
}
