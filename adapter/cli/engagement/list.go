package engagement

import (
	"fmt"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/engagement/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	listCustomerID string
	listTrainerID  string
	listState      string
	listKind       string
	listRisk       string
	listDate       string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Score a set of subscriptions",
	Long: `Score matching subscriptions and print a risk summary.

Examples:
  coachdesk engagement list
  coachdesk engagement list --state active --risk high
  coachdesk engagement list --trainer 6f1c... --date 2025-03-01`,
	Aliases: []string{"ls"},
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ComputeEngagementBatchHandler == nil {
			fmt.Println("Engagement commands require storage.")
			return nil
		}

		today, err := resolveDate(listDate)
		if err != nil {
			return err
		}

		query := queries.ComputeEngagementBatchQuery{
			State: listState,
			Kind:  listKind,
			Today: today,
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

		summary, err := app.ComputeEngagementBatchHandler.Handle(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to score subscriptions: %w", err)
		}

		shown := 0
		fmt.Printf("%-36s  %5s  %-8s  %s\n", "SUBSCRIPTION", "SCORE", "RISK", "FACTORS")
		for _, item := range summary.Items {
			if listRisk != "" && string(item.Metric.RiskLevel) != listRisk {
				continue
			}
			factors := ""
			if len(item.Metric.RiskFactors) > 0 {
				factors = item.Metric.RiskFactors[0]
				if len(item.Metric.RiskFactors) > 1 {
					factors += fmt.Sprintf(" (+%d more)", len(item.Metric.RiskFactors)-1)
				}
			}
			fmt.Printf("%-36s  %5d  %-8s  %s\n",
				item.SubscriptionID, item.Metric.CompositeScore, item.Metric.RiskLevel, factors)
			shown++
		}

		fmt.Printf("\n%d of %d scored, average %.1f\n", shown, summary.Total, summary.AverageScore)
		fmt.Printf("critical %d, high %d, medium %d, low %d\n",
			summary.ByRisk["critical"], summary.ByRisk["high"],
			summary.ByRisk["medium"], summary.ByRisk["low"])
		return nil
	},
}

func init() {
	listCmd.Flags().StringVar(&listCustomerID, "customer", "", "filter by customer ID")
	listCmd.Flags().StringVar(&listTrainerID, "trainer", "", "filter by trainer ID")
	listCmd.Flags().StringVar(&listState, "state", "", "filter by subscription state")
	listCmd.Flags().StringVar(&listKind, "kind", "", "filter by subscription kind")
	listCmd.Flags().StringVar(&listRisk, "risk", "", "only show this risk level")
	listCmd.Flags().StringVar(&listDate, "date", "", "score as of this date (YYYY-MM-DD, default today)")
}
