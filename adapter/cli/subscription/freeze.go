package subscription

import (
	"fmt"
	"time"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	freezeStart      string
	freezeEnd        string
	freezeReason     string
	freezeAutoResume bool
)

var freezeCmd = &cobra.Command{
	Use:   "freeze <subscription-id>",
	Short: "Freeze a subscription",
	Long: `Pause a subscription for a date range. The expiration date shifts by
the frozen days and sessions are preserved.

Examples:
  coachdesk subscription freeze 6f1c... --start 2025-01-10 --end 2025-01-20 --reason vacation
  coachdesk subscription freeze 6f1c... --start 2025-02-01 --end 2025-02-15 --reason injury --auto-resume`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.FreezeHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}
		start, err := time.Parse(dateLayout, freezeStart)
		if err != nil {
			return fmt.Errorf("invalid --start, expected YYYY-MM-DD: %w", err)
		}
		end, err := time.Parse(dateLayout, freezeEnd)
		if err != nil {
			return fmt.Errorf("invalid --end, expected YYYY-MM-DD: %w", err)
		}

		result, err := app.FreezeHandler.Handle(cmd.Context(), commands.FreezeSubscriptionCommand{
			SubscriptionID: id,
			Start:          start,
			End:            end,
			Reason:         freezeReason,
			AutoResume:     freezeAutoResume,
			ActorID:        cli.ActorID(),
		})
		if err != nil {
			return fmt.Errorf("failed to freeze subscription: %w", err)
		}

		fmt.Printf("Frozen for %d day(s), expiration moved to %s\n",
			result.FrozenDays, result.ExpirationDate.Format(dateLayout))
		return nil
	},
}

var unfreezeCmd = &cobra.Command{
	Use:   "unfreeze <subscription-id>",
	Short: "Resume a frozen subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.UnfreezeHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}

		result, err := app.UnfreezeHandler.Handle(cmd.Context(), commands.UnfreezeSubscriptionCommand{
			SubscriptionID: id,
			ActorID:        cli.ActorID(),
		})
		if err != nil {
			return fmt.Errorf("failed to resume subscription: %w", err)
		}

		fmt.Printf("Resumed, state %s, expires %s\n",
			result.State, result.ExpirationDate.Format(dateLayout))
		return nil
	},
}

func init() {
	freezeCmd.Flags().StringVar(&freezeStart, "start", "", "freeze start date (YYYY-MM-DD, required)")
	freezeCmd.Flags().StringVar(&freezeEnd, "end", "", "freeze end date (YYYY-MM-DD, required)")
	freezeCmd.Flags().StringVar(&freezeReason, "reason", "", "why the subscription is paused")
	freezeCmd.Flags().BoolVar(&freezeAutoResume, "auto-resume", false, "resume automatically when the freeze ends")
	_ = freezeCmd.MarkFlagRequired("start")
	_ = freezeCmd.MarkFlagRequired("end")
}
