package engagement

import (
	"fmt"
	"time"

	"github.com/coachdesk/coachdesk/adapter/cli"
	"github.com/coachdesk/coachdesk/internal/engagement/application/queries"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var scoreDate string

var scoreCmd = &cobra.Command{
	Use:   "score <subscription-id>",
	Short: "Score one subscription",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.ComputeEngagementHandler == nil {
			fmt.Println("Engagement commands require storage.")
			return nil
		}

		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription ID: %w", err)
		}
		today, err := resolveDate(scoreDate)
		if err != nil {
			return err
		}

		dto, err := app.ComputeEngagementHandler.Handle(cmd.Context(), queries.ComputeEngagementQuery{
			SubscriptionID: id,
			Today:          today,
		})
		if err != nil {
			return fmt.Errorf("failed to score subscription: %w", err)
		}

		m := dto.Metric
		fmt.Printf("Subscription %s (%s)\n", dto.SubscriptionID, dto.State)
		fmt.Printf("  Score:       %d (%s risk)\n", m.CompositeScore, m.RiskLevel)
		fmt.Printf("  Usage:       %.0f%%\n", m.UsageRate*100)
		fmt.Printf("  Attendance:  %.0f%%\n", m.AttendanceRate*100)
		fmt.Printf("  Punctuality: %.0f%%\n", m.PaymentPunctualityRate*100)
		fmt.Printf("  Last seen:   %d day(s) ago\n", m.DaysSinceLastSession)
		for _, factor := range m.RiskFactors {
			fmt.Printf("  ! %s\n", factor)
		}
		return nil
	},
}

// resolveDate parses the --date flag, defaulting to the current UTC day.
func resolveDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date, expected YYYY-MM-DD: %w", err)
	}
	return t, nil
}

func init() {
	scoreCmd.Flags().StringVar(&scoreDate, "date", "", "score as of this date (YYYY-MM-DD, default today)")
}
