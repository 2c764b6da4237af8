package subscription

import (
	"fmt"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/subscription/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <subscription-id>",
	Short: "Show a subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.GetSubscriptionHandler == nil {
			fmt.Println("Subscription commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}

		dto, err := app.GetSubscriptionHandler.Handle(cmd.Context(), queries.GetSubscriptionQuery{SubscriptionID: id})
		if err != nil {
			return fmt.Errorf("failed to load subscription: %w", err)
		}

		printSubscription(dto)
		return nil
	},
}

func printSubscription(dto *queries.SubscriptionDTO) {
	fmt.Printf("Subscription %s\n", dto.ID)
	fmt.Printf("  Customer:  %s\n", dto.CustomerID)
	if dto.TrainerID != nil {
		fmt.Printf("  Trainer:   %s\n", dto.TrainerID)
	}
	fmt.Printf("  Plan:      %s (%s, %s)\n", dto.PlanID, dto.Kind, dto.Frequency)
	fmt.Printf("  State:     %s\n", dto.State)
	if dto.OriginalPrice != nil {
		fmt.Printf("  Price:     %.2f (was %.2f)\n", dto.Price, *dto.OriginalPrice)
	} else {
		fmt.Printf("  Price:     %.2f\n", dto.Price)
	}
	if dto.IncludedSessions > 0 {
		fmt.Printf("  Sessions:  %d available, %d used of %d included\n",
			dto.AvailableSessions, dto.UsedSessions, dto.IncludedSessions)
	}
	fmt.Printf("  Period:    %s to %s\n",
		dto.StartDate.Format(dateLayout), dto.ExpirationDate.Format(dateLayout))
	if dto.RecurringBilling {
		fmt.Printf("  Renews:    %s\n", dto.NextRenewalDate.Format(dateLayout))
	}
	if dto.FrozenUntil != nil {
		fmt.Printf("  Frozen to: %s\n", dto.FrozenUntil.Format(dateLayout))
	}
	if dto.IsGroup {
		fmt.Printf("  Members:   %d\n", dto.MemberCount)
	}
	if dto.CancellationReason != "" {
		fmt.Printf("  Cancelled: %s\n", dto.CancellationReason)
	}
}
