package queries

import (
	"context"
	"testing"
	"time"

	engagementDomain "github.com/coachdesk/coachdesk/internal/engagement/domain"
	"github.com/coachdesk/coachdesk/internal/engagement/infrastructure"
	subscriptionDomain "github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/coachdesk/coachdesk/internal/subscription/infrastructure/persistence"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func saveSubscription(t *testing.T, repo *persistence.MemoryRepository) *subscriptionDomain.Subscription {
	t.Helper()
	sub, err := subscriptionDomain.NewSubscription(subscriptionDomain.CreateSpec{
		CustomerID:       uuid.New(),
		Kind:             subscriptionDomain.KindPersonalTraining,
		PlanID:           "pt-8",
		Frequency:        subscriptionDomain.BillingMonthly,
		Price:            240,
		SessionsIncluded: 8,
		StartDate:        date(2025, time.January, 1),
		RecurringBilling: true,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), sub))
	return sub
}

func TestComputeEngagementHandler_Handle(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	history := infrastructure.NewMemoryHistoryStore()
	handler := NewComputeEngagementHandler(repo, history)
	ctx := context.Background()

	t.Run("scores recorded history", func(t *testing.T) {
		sub := saveSubscription(t, repo)
		last := date(2025, time.January, 28)
		history.Put(sub.ID(), engagementDomain.History{
			IncludedSessions:  8,
			UsedSessions:      7,
			ScheduledSessions: 7,
			AttendedSessions:  7,
			OnTimePayments:    2,
			LastSessionAt:     &last,
		})

		dto, err := handler.Handle(ctx, ComputeEngagementQuery{
			SubscriptionID: sub.ID(),
			Today:          date(2025, time.January, 30),
		})
		require.NoError(t, err)
		assert.Equal(t, sub.ID(), dto.SubscriptionID)
		assert.Equal(t, sub.CustomerID(), dto.CustomerID)
		assert.Equal(t, 100, dto.Metric.CompositeScore)
		assert.Equal(t, engagementDomain.RiskLow, dto.Metric.RiskLevel)
	})

	t.Run("falls back to the subscription ledger", func(t *testing.T) {
		sub := saveSubscription(t, repo)
		require.NoError(t, sub.RecordUsage(2))
		require.NoError(t, repo.Save(ctx, sub))

		dto, err := handler.Handle(ctx, ComputeEngagementQuery{
			SubscriptionID: sub.ID(),
			Today:          date(2025, time.January, 30),
		})
		require.NoError(t, err)
		assert.InDelta(t, 0.25, dto.Metric.UsageRate, 0.001)
		assert.Contains(t, dto.Metric.RiskFactors, "low session usage")
	})

	t.Run("not found", func(t *testing.T) {
		_, err := handler.Handle(ctx, ComputeEngagementQuery{
			SubscriptionID: uuid.New(),
			Today:          date(2025, time.January, 30),
		})
		assert.ErrorIs(t, err, subscriptionDomain.ErrSubscriptionNotFound)
	})
}

func TestComputeEngagementBatchHandler_Handle(t *testing.T) {
	repo := persistence.NewMemoryRepository()
	history := infrastructure.NewMemoryHistoryStore()
	handler := NewComputeEngagementBatchHandler(repo, history)
	ctx := context.Background()
	today := date(2025, time.February, 1)

	engaged := saveSubscription(t, repo)
	last := date(2025, time.January, 30)
	history.Put(engaged.ID(), engagementDomain.History{
		IncludedSessions: 8, UsedSessions: 7,
		ScheduledSessions: 7, AttendedSessions: 7,
		OnTimePayments: 2,
		LastSessionAt:  &last,
	})

	atRisk := saveSubscription(t, repo)
	stale := date(2024, time.December, 1)
	history.Put(atRisk.ID(), engagementDomain.History{
		IncludedSessions: 8, UsedSessions: 1,
		ScheduledSessions: 4, AttendedSessions: 1,
		FailedPayments: 1,
		LastSessionAt:  &stale,
	})

	summary, err := handler.Handle(ctx, ComputeEngagementBatchQuery{Today: today})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Total)
	assert.Len(t, summary.Items, 2)
	assert.Equal(t, 1, summary.ByRisk[string(engagementDomain.RiskLow)])
	assert.Equal(t, 1, summary.ByRisk[string(engagementDomain.RiskCritical)])
	assert.Greater(t, summary.AverageScore, 0.0)

	t.Run("state filter", func(t *testing.T) {
		frozen := saveSubscription(t, repo)
		require.NoError(t, frozen.StartFreeze(date(2025, time.February, 1), date(2025, time.February, 10), "vacation", true))
		require.NoError(t, repo.Save(ctx, frozen))

		summary, err := handler.Handle(ctx, ComputeEngagementBatchQuery{
			State: string(subscriptionDomain.StateFrozen),
			Today: today,
		})
		require.NoError(t, err)
		require.Equal(t, 1, summary.Total)
		assert.Equal(t, frozen.ID(), summary.Items[0].SubscriptionID)
	})

	t.Run("empty result", func(t *testing.T) {
		customerID := uuid.New()
		summary, err := handler.Handle(ctx, ComputeEngagementBatchQuery{
			CustomerID: &customerID,
			Today:      today,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, summary.Total)
		assert.Equal(t, 0.0, summary.AverageScore)
	})
}
