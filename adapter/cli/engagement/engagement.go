// Package engagement implements the engagement scoring CLI commands.
package engagement

import (
	"github.com/spf13/cobra"
)

// Cmd is the engagement command group.
var Cmd = &cobra.Command{
	Use:   "engagement",
	Short: "Score customer engagement",
	Long: `Compute engagement scores and churn risk from session and payment
history.

Examples:
  coachdesk engagement score 6f1c...
  coachdesk engagement list --risk critical`,
}

const dateLayout = "2006-01-02"

func init() {
	Cmd.AddCommand(scoreCmd)
	Cmd.AddCommand(listCmd)
}
