package subscription

import (
	"fmt"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	cancelReason    string
	cancelImmediate bool
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <subscription-id>",
	Short: "Cancel a subscription",
	Long: `Cancel a subscription. By default the subscription stays usable until
the end of the paid period; --immediate ends it right away.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CancelHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}

		result, err := app.CancelHandler.Handle(cmd.Context(), commands.CancelSubscriptionCommand{
			SubscriptionID: id,
			Reason:         cancelReason,
			Immediate:      cancelImmediate,
			ActorID:        cli.ActorID(),
		})
		if err != nil {
			return fmt.Errorf("failed to cancel subscription: %w", err)
		}

		fmt.Printf("Cancelled, state %s\n", result.State)
		if result.UnusedSessions > 0 {
			fmt.Printf("  Unused sessions: %d\n", result.UnusedSessions)
		}
		return nil
	},
}

func init() {
	cancelCmd.Flags().StringVar(&cancelReason, "reason", "", "cancellation reason")
	cancelCmd.Flags().BoolVar(&cancelImmediate, "immediate", false, "end access now instead of at period end")
}
