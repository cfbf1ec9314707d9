package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"presupuesto/internal/alerts"
	"presupuesto/internal/cli"
)

// alertsCmd represents the alerts command.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List budgets over the alert threshold",
	Args:  cobra.NoArgs,
	RunE:  runAlerts,
}

func runAlerts(cmd *cobra.Command, args []string) error {
	return withLedger(cmd.Context(), func(l *cli.Ledger) error {
		out := cmd.OutOrStdout()
		active := l.Service.Alerts()
		if jsonOutput {
			if active == nil {
				active = []alerts.Alert{}
			}
			return writeJSON(out, active)
		}
		if len(active) == 0 {
			fmt.Fprintln(out, "No budget alerts.")
			return nil
		}
		for _, a := range active {
			fmt.Fprintf(out, "%-20s %s / %s (%s%%)\n", a.Category, a.Spent, a.Limit, a.Percentage.StringFixed(2))
		}
		return nil
	})
}
