package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"presupuesto/internal/cli"
)

var exportPath string

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export transactions as CSV",
	Long: `Write every transaction as CSV with the header
Tipo,Monto,Moneda,Fecha,Categoría,Notas to stdout or to a file.

Example:
  ledgerctl export > ledger.csv
  ledgerctl export -o ledger.csv`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "write to this file instead of stdout")
}

func runExport(cmd *cobra.Command, args []string) error {
	return withLedger(cmd.Context(), func(l *cli.Ledger) error {
		if exportPath == "" {
			return l.Service.ExportCSV(cmd.OutOrStdout())
		}
		f, err := os.Create(exportPath)
		if err != nil {
			return fmt.Errorf("create export file: %w", err)
		}
		if err := l.Service.ExportCSV(f); err != nil {
			_ = f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		slog.Info("Exported transactions", "path", exportPath, "transactions", len(l.Service.Transactions()))
		return nil
	})
}
