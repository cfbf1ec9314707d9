// Package cmd provides the ledgerctl commands.
package cmd

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"presupuesto/internal/cli"
	applog "presupuesto/internal/log"
)

var (
	debug      bool
	jsonOutput bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ledgerctl",
	Short: "Inspect and maintain the presupuesto ledger",
	Long: `ledgerctl loads the ledger from the configured backend (same
environment as the server) and runs one command against it.

Example:
  ledgerctl summary
  ledgerctl summary --month 2025-03
  ledgerctl export -o ledger.csv
  ledgerctl alerts --json
  ledgerctl roll`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
		level := applog.ParseLevel(os.Getenv("LOG_LEVEL"))
		if debug {
			level = slog.LevelDebug
		}
		applog.SetDefault(applog.New(applog.Config{
			Level:     level,
			Component: applog.ComponentCLI,
			Output:    cmd.ErrOrStderr(),
		}))
	},
}

// Execute runs the root command. It is called by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")

	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(alertsCmd)
	rootCmd.AddCommand(rollCmd)
}

// withLedger opens and loads the ledger, runs fn, then drains and closes it.
func withLedger(ctx context.Context, fn func(l *cli.Ledger) error) (err error) {
	logger := applog.Default(applog.ComponentCLI)
	cfg, err := cli.LoadConfig()
	if err != nil {
		return err
	}

	l, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := cli.ShutdownContext(cli.DefaultShutdownTimeout)
		defer cancel()
		if cerr := l.Close(stopCtx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	if err := l.Load(ctx); err != nil {
		return err
	}
	return fn(l)
}
