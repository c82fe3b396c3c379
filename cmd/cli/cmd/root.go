// Package cmd provides the CLI commands for premium-rater.
package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"premium-rater/core/output"
	"premium-rater/core/tables"
	"premium-rater/internal/config"
	"premium-rater/internal/logging"
)

// Version is set at build time
var Version = "0.1.0"

// rootOptions carries state shared by all subcommands
type rootOptions struct {
	cfgFile      string
	verbose      bool
	format       string
	tablesSource string
	tablesPath   string

	cfg *config.Config
}

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "premium-rater",
		Short: "Rate insurance premiums from calibration tables",
		Long: `premium-rater computes premiums from asset size, limit, retention and
industry using interpolated calibration tables.

Examples:
  premium-rater rate --asset-size 1200000 --limit 5000000 --retention 1000000 --industry "Hazard Group 2"
  premium-rater rate --input request.json --format json
  premium-rater batch --input requests.jsonl --workers 8
  premium-rater tables show --tables ./calibration`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.init(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&o.cfgFile, "config", "", "config file (JSON or YAML)")
	rootCmd.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&o.format, "format", "f", "", "output format (text, json)")
	rootCmd.PersistentFlags().StringVar(&o.tablesPath, "tables", "", "calibration file or CSV directory")
	rootCmd.PersistentFlags().StringVar(&o.tablesSource, "tables-source", "", "calibration source (builtin, csv, hcl, yaml, json, sqlite, auto)")

	// Add subcommands
	rootCmd.AddCommand(newRateCmd(o))
	rootCmd.AddCommand(newBatchCmd(o))
	rootCmd.AddCommand(newTablesCmd(o))
	rootCmd.AddCommand(newConfigCmd(o))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().Execute()
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	cfg, err := config.Load(o.cfgFile)
	if err != nil {
		return err
	}

	if o.tablesPath != "" {
		cfg.Tables.Path = o.tablesPath
		if o.tablesSource == "" {
			o.tablesSource = "auto"
		}
	}
	if o.tablesSource != "" {
		cfg.Tables.Source = o.tablesSource
	}
	if o.format == "" {
		o.format = cfg.Output.DefaultFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if o.verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}

	o.cfg = cfg
	return nil
}

// provider opens the configured calibration source.
// The returned close func releases database handles.
func (o *rootOptions) provider() (tables.Provider, func(), error) {
	p, err := tables.Open(o.cfg.Tables.Source, o.cfg.Tables.Path)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if c, ok := p.(io.Closer); ok {
		closeFn = func() { _ = c.Close() }
	}
	return p, closeFn, nil
}

// loadTables reads the configured calibration set once
func (o *rootOptions) loadTables(ctx context.Context) (*tables.Tables, error) {
	p, closeFn, err := o.provider()
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return p.Tables(ctx)
}

func (o *rootOptions) formatter() (output.Formatter, error) {
	return output.Get(output.Format(o.format))
}

// versionCmd prints version information
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "premium-rater version %s\n", Version)
		},
	}
}
