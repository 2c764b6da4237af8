// Package subscription implements the subscription CLI commands.
package subscription

import (
	"github.com/spf13/cobra"
)

// Cmd is the subscription command group.
var Cmd = &cobra.Command{
	Use:   "subscription",
	Short: "Manage subscriptions",
	Long: `Create, inspect, and operate on subscriptions.

Examples:
  coachdesk subscription create --customer 6f1c... --plan pt-8 --start 2025-01-01
  coachdesk subscription list --state active
  coachdesk subscription freeze <id> --start 2025-01-10 --end 2025-01-20 --reason vacation
  coachdesk subscription usage <id> --count 2`,
	Aliases: []string{"sub"},
}

const dateLayout = "2006-01-02"

func init() {
	Cmd.AddCommand(createCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(freezeCmd)
	Cmd.AddCommand(unfreezeCmd)
	Cmd.AddCommand(cancelCmd)
	Cmd.AddCommand(usageCmd)
	Cmd.AddCommand(historyCmd)
}
