package subscription

import (
	"fmt"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/subscription/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	listCustomerID string
	listTrainerID  string
	listState      string
	listKind       string
	listLimit      int
	listOffset     int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List subscriptions",
	Long: `List subscriptions, optionally filtered.

Examples:
  coachdesk subscription list
  coachdesk subscription list --state frozen
  coachdesk subscription list --customer 6f1c... --kind personal_training`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ListSubscriptionsHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		query := queries.ListSubscriptionsQuery{
			State:  listState,
			Kind:   listKind,
			Limit:  listLimit,
			Offset: listOffset,
		}
		if listCustomerID != "" {
			id, err := uuid.Parse(listCustomerID)
			if err != nil {
				return fmt.Errorf("invalid --customer: %w", err)
			}
			query.CustomerID = &id
		}
		if listTrainerID != "" {
			id, err := uuid.Parse(listTrainerID)
			if err != nil {
				return fmt.Errorf("invalid --trainer: %w", err)
			}
			query.TrainerID = &id
		}

		subs, err := app.ListSubscriptionsHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to list subscriptions: %w", err)
		}

		if len(subs) == 0 {
			fmt.Println("No subscriptions found.")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %-16s  %8s  %9s\n", "ID", "STATE", "PLAN", "PRICE", "SESSIONS")
		for _, dto := range subs {
			sessions := "-"
			if dto.IncludedSessions > 0 {
				sessions = fmt.Sprintf("%d/%d", dto.AvailableSessions, dto.IncludedSessions)
			}
			fmt.Printf("%-36s  %-12s  %-16s  %8.2f  %9s\n",
				dto.ID, dto.State, dto.PlanID, dto.Price, sessions)
		}
		fmt.Printf("\n%d subscription(s)\n", len(subs))
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listCustomerID, "customer", "", "filter by customer ID")
	listCmd.Flags().StringVar(&listTrainerID, "trainer", "", "filter by trainer ID")
	listCmd.Flags().StringVar(&listState, "state", "", "filter by state (active, frozen, cancelled, ...)")
	listCmd.Flags().StringVar(&listKind, "kind", "", "filter by kind (personal_training, gym_membership)")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "maximum rows to return")
	listCmd.Flags().IntVar(&listOffset, "offset", 0, "rows to skip")
}
