package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"presupuesto/internal/cli"
	"presupuesto/internal/core"
)

// rollCmd represents the roll command.
var rollCmd = &cobra.Command{
	Use:   "roll",
	Short: "Apply recurring rules that are due today",
	Long: `Append one transaction for every recurring rule due today and
persist the ledger. Rules already applied this period are left alone.`,
	Args: cobra.NoArgs,
	RunE: runRoll,
}

func runRoll(cmd *cobra.Command, args []string) error {
	return withLedger(cmd.Context(), func(l *cli.Ledger) error {
		created, err := l.Service.RollRecurring(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if jsonOutput {
			if created == nil {
				created = []core.Transaction{}
			}
			return writeJSON(out, map[string]any{"created": created})
		}
		fmt.Fprintf(out, "Recurring transactions created: %d\n", len(created))
		for _, t := range created {
			fmt.Fprintf(out, "  %s %s %s %s %s\n", t.Date, t.Type, t.Amount, t.Currency, t.Category)
		}
		return nil
	})
}
