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
	createCustomerID string
	createTrainerID  string
	createPlanID     string
	createStartDate  string
	createRecurring  bool
	createWithTrial  bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a subscription",
	Long: `Create a subscription for a customer on a catalog plan.

Examples:
  coachdesk subscription create --customer 6f1c... --plan pt-8 --start 2025-01-01
  coachdesk subscription create --customer 6f1c... --plan gym-basic --recurring
  coachdesk subscription create --customer 6f1c... --plan pt-8 --trial`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.CreateSubscriptionHandler == nil {
			fmt.Println("Subscription commands require storage.")
			fmt.Println("Set STORAGE_DRIVER (memory, sqlite, postgres) and retry.")
			return nil
		}

		customerID, err := uuid.Parse(createCustomerID)
		if err != nil {
			return fmt.Errorf("invalid --customer: %w", err)
		}

		start := time.Now().UTC().Truncate(24 * time.Hour)
		if createStartDate != "" {
			start, err = time.Parse(dateLayout, createStartDate)
			if err != nil {
				return fmt.Errorf("invalid --start, expected YYYY-MM-DD: %w", err)
			}
		}

		command := commands.CreateSubscriptionCommand{
			CustomerID:       customerID,
			PlanID:           createPlanID,
			StartDate:        start,
			RecurringBilling: createRecurring,
			WithTrial:        createWithTrial,
			ActorID:          cli.ActorID(),
		}
		if createTrainerID != "" {
			trainerID, err := uuid.Parse(createTrainerID)
			if err != nil {
				return fmt.Errorf("invalid --trainer: %w", err)
			}
			command.TrainerID = &trainerID
		}

		result, err := app.CreateSubscriptionHandler.Handle(cmd.Context(), command)
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		fmt.Printf("Created subscription %s\n", result.SubscriptionID)
		fmt.Printf("  State:    %s\n", result.State)
		fmt.Printf("  Price:    %.2f\n", result.Price)
		if result.Sessions > 0 {
			fmt.Printf("  Sessions: %d\n", result.Sessions)
		}
		fmt.Printf("  Expires:  %s\n", result.ExpirationDate.Format(dateLayout))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVar(&createCustomerID, "customer", "", "customer ID (required)")
	createCmd.Flags().StringVar(&createTrainerID, "trainer", "", "trainer ID")
	createCmd.Flags().StringVar(&createPlanID, "plan", "", "catalog plan ID (required)")
	createCmd.Flags().StringVar(&createStartDate, "start", "", "start date (YYYY-MM-DD, default today)")
	createCmd.Flags().BoolVar(&createRecurring, "recurring", false, "renew automatically each cycle")
	createCmd.Flags().BoolVar(&createWithTrial, "trial", false, "start with the plan's trial period")
	_ = createCmd.MarkFlagRequired("customer")
	_ = createCmd.MarkFlagRequired("plan")
}
