package subscription

import (
	"fmt"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/subscription/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	historyType  string
	historyLimit int
)

var historyCmd = &cobra.Command{
	Use:   "history <subscription-id>",
	Short: "Show the audit trail of a subscription",
	Long: `Print the recorded changes of a subscription, oldest first.

Examples:
  coachdesk subscription history 6f1c...
  coachdesk subscription history 6f1c... --type state_change --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetHistoryHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}

		records, err := app.GetHistoryHandler.Handle(cmd.Context(), queries.GetHistoryQuery{
			SubscriptionID: id,
			Type:           historyType,
			Limit:          historyLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to load history: %w", err)
		}

		if len(records) == 0 {
			fmt.Println("No history entries.")
			return nil
		}

		for _, rec := range records {
			fmt.Printf("%s  %-16s  %s\n",
				rec.Timestamp.Format("2006-01-02 15:04"), rec.Type, rec.Description)
			for _, delta := range rec.Deltas {
				fmt.Printf("    %s: %s -> %s\n", delta.Field, delta.Before, delta.After)
			}
			if rec.Reason != "" {
				fmt.Printf("    reason: %s\n", rec.Reason)
			}
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().StringVar(&historyType, "type", "", "filter by change type")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "only the most recent N entries")
}
