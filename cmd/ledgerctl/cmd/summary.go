package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"presupuesto/internal/cli"
)

var month string

// summaryCmd represents the summary command.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Display ledger totals",
	Long: `Display income, expenses, savings, outstanding debt and balance,
all in the base unit. With --month the overview of that month is shown
instead.

Example:
  ledgerctl summary
  ledgerctl summary --month 2025-03`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&month, "month", "", "month overview as YYYY-MM")
}

func runSummary(cmd *cobra.Command, args []string) error {
	var year, mon int
	if month != "" {
		t, err := time.Parse("2006-01", month)
		if err != nil {
			return fmt.Errorf("invalid --month %q: want YYYY-MM", month)
		}
		year, mon = t.Year(), int(t.Month())
	}

	return withLedger(cmd.Context(), func(l *cli.Ledger) error {
		out := cmd.OutOrStdout()
		if month != "" {
			ov := l.Service.MonthlyReport(year, mon)
			if jsonOutput {
				return writeJSON(out, ov)
			}
			fmt.Fprintf(out, "=== %04d-%02d ===\n", ov.Year, ov.Month)
			fmt.Fprintf(out, "Income:       %s\n", ov.Income)
			fmt.Fprintf(out, "Expenses:     %s\n", ov.Expenses)
			fmt.Fprintf(out, "Savings:      %s\n", ov.Savings)
			fmt.Fprintf(out, "Net:          %s\n", ov.Net)
			fmt.Fprintf(out, "Transactions: %d\n", ov.Count)
			for _, c := range ov.ByCategory {
				fmt.Fprintf(out, "  %-20s %s\n", c.Name, c.Amount)
			}
			return nil
		}

		s := l.Service.Summary()
		if jsonOutput {
			return writeJSON(out, s)
		}
		fmt.Fprintln(out, "=== Ledger Summary ===")
		fmt.Fprintf(out, "Income:      %s\n", s.Income)
		fmt.Fprintf(out, "Expenses:    %s\n", s.Expenses)
		fmt.Fprintf(out, "Savings:     %s\n", s.Savings)
		fmt.Fprintf(out, "Total debts: %s\n", s.TotalDebts)
		fmt.Fprintf(out, "Balance:     %s\n", s.Balance)
		if s.Unnormalized > 0 {
			fmt.Fprintf(out, "Skipped (unknown currency): %d\n", s.Unnormalized)
		}
		return nil
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
