package subscription

import (
	"fmt"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var usageCount int

var usageCmd = &cobra.Command{
	Use:   "usage <subscription-id>",
	Short: "Record session usage",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.RecordUsageHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}

		result, err := app.RecordUsageHandler.Handle(cmd.Context(), commands.RecordUsageCommand{
			SubscriptionID: id,
			Count:          usageCount,
			ActorID:        cli.ActorID(),
		})
		if err != nil {
			return fmt.Errorf("failed to record usage: %w", err)
		}

		fmt.Printf("Recorded %d session(s), %d remaining (%d used)\n",
			usageCount, result.Available, result.Used)
		return nil
	},
}

func init() {
	usageCmd.Flags().IntVar(&usageCount, "count", 1, "number of sessions used")
}
