// Package cmd - tables commands
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"premium-rater/core/rating"
	"premium-rater/core/tables"
	"premium-rater/internal/logging"
)

func newTablesCmd(o *rootOptions) *cobra.Command {
	tablesCmd := &cobra.Command{
		Use:   "tables",
		Short: "Inspect and convert calibration tables",
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}

	tablesCmd.AddCommand(newTablesShowCmd(o))
	tablesCmd.AddCommand(newTablesExportCmd(o))
	return tablesCmd
}

func newTablesShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the active calibration tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.loadTables(cmd.Context())
			if err != nil {
				return err
			}

			// an unusable set is still shown, with a warning
			if _, err := rating.NewEngine(t); err != nil {
				logging.Warn(err.Error())
			}

			format := "yaml"
			if o.format == "json" {
				format = "json"
			}
			return tables.Export(cmd.OutOrStdout(), t, format)
		},
	}
}

func newTablesExportCmd(o *rootOptions) *cobra.Command {
	var to, out string

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Write the active calibration tables in another format",
		Long: `Convert the active calibration tables.

csv writes the three table files into the --out directory; sqlite writes
a database file. yaml, json and hcl write to --out or stdout.

Examples:
  premium-rater tables export --to csv --out ./calibration
  premium-rater tables export --tables ./calibration --to sqlite --out rates.db`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := o.loadTables(cmd.Context())
			if err != nil {
				return err
			}

			switch to {
			case "csv":
				if out == "" {
					return fmt.Errorf("--out directory is required for csv")
				}
				return tables.ExportCSV(out, t)
			case "sqlite":
				if out == "" {
					return fmt.Errorf("--out file is required for sqlite")
				}
				return tables.ExportSQLite(cmd.Context(), out, t)
			}

			if out == "" {
				return tables.Export(cmd.OutOrStdout(), t, to)
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := tables.Export(f, t, to); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		},
	}

	exportCmd.Flags().StringVar(&to, "to", "yaml", "target format (csv, yaml, json, hcl, sqlite)")
	exportCmd.Flags().StringVarP(&out, "out", "o", "", "output file or directory")
	return exportCmd
}
