package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newSubscription(t *testing.T, customerID uuid.UUID) *domain.Subscription {
	t.Helper()
	sub, err := domain.NewSubscription(domain.CreateSpec{
		CustomerID:       customerID,
		Kind:             domain.KindPersonalTraining,
		PlanID:           "pt-8",
		Frequency:        domain.BillingMonthly,
		Price:            240,
		SessionsIncluded: 8,
		StartDate:        date(2025, time.January, 1),
		RecurringBilling: true,
	})
	require.NoError(t, err)
	return sub
}

func TestMemoryRepository_RoundTrip(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	sub := newSubscription(t, uuid.New())
	require.NoError(t, sub.RecordUsage(1))
	require.NoError(t, repo.Save(ctx, sub))

	found, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, sub.ID(), found.ID())
	assert.Equal(t, sub.CustomerID(), found.CustomerID())
	assert.Equal(t, domain.StateActive, found.State())
	assert.Equal(t, 7, found.AvailableSessions())
	assert.Len(t, found.History(), len(sub.History()))
}

func TestMemoryRepository_FindByID_NotFound(t *testing.T) {
	repo := NewMemoryRepository()

	found, err := repo.FindByID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestMemoryRepository_Isolation(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	sub := newSubscription(t, uuid.New())
	require.NoError(t, repo.Save(ctx, sub))

	// Mutating the loaded copy must not leak into the store.
	loaded, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.RecordUsage(1))

	fresh, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Equal(t, 8, fresh.AvailableSessions())
}

func TestMemoryRepository_Isolation_PointerFields(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	sub := newSubscription(t, uuid.New())
	count := 3
	_, err := sub.TransferSessions(&count, "2025-01", "2025-02", 5)
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, sub))

	// Renewing the loaded copy marks its transfers applied; without a save
	// the stored transfer must stay pending.
	loaded, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	require.NoError(t, loaded.Renew(date(2025, time.February, 1)))
	require.Empty(t, loaded.PendingTransfers())

	fresh, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Len(t, fresh.PendingTransfers(), 1)
	assert.Equal(t, 5, fresh.AvailableSessions())
	assert.Equal(t, domain.StateActive, fresh.State())
}

func TestMemoryRepository_FindByCustomerID(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()
	customerID := uuid.New()

	first := newSubscription(t, customerID)
	second := newSubscription(t, customerID)
	other := newSubscription(t, uuid.New())
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))
	require.NoError(t, repo.Save(ctx, other))

	subs, err := repo.FindByCustomerID(ctx, customerID)
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	for _, sub := range subs {
		assert.Equal(t, customerID, sub.CustomerID())
	}
}

func TestMemoryRepository_List(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	active := newSubscription(t, uuid.New())
	cancelled := newSubscription(t, uuid.New())
	require.NoError(t, cancelled.Cancel("moved away", true, date(2025, time.January, 10)))
	require.NoError(t, repo.Save(ctx, active))
	require.NoError(t, repo.Save(ctx, cancelled))

	state := domain.StateActive
	subs, err := repo.List(ctx, domain.ListFilter{State: &state})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, active.ID(), subs[0].ID())

	t.Run("limit and offset", func(t *testing.T) {
		all, err := repo.List(ctx, domain.ListFilter{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Len(t, all, 1)

		none, err := repo.List(ctx, domain.ListFilter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func TestMemoryRepository_FindFrozenDueForResume(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	due := newSubscription(t, uuid.New())
	require.NoError(t, due.StartFreeze(date(2025, time.January, 10), date(2025, time.January, 20), "vacation", true))

	manual := newSubscription(t, uuid.New())
	require.NoError(t, manual.StartFreeze(date(2025, time.January, 10), date(2025, time.January, 20), "vacation", false))

	notYet := newSubscription(t, uuid.New())
	require.NoError(t, notYet.StartFreeze(date(2025, time.January, 10), date(2025, time.February, 15), "injury", true))

	require.NoError(t, repo.Save(ctx, due))
	require.NoError(t, repo.Save(ctx, manual))
	require.NoError(t, repo.Save(ctx, notYet))

	subs, err := repo.FindFrozenDueForResume(ctx, date(2025, time.January, 21))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.ID(), subs[0].ID())
}

func TestMemoryRepository_FindWithExpiringDiscounts(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	until := date(2025, time.February, 1)
	expiring := newSubscription(t, uuid.New())
	require.NoError(t, expiring.ApplyDiscount(domain.Discount{
		Type:       domain.DiscountPercentage,
		Value:      10,
		Reason:     "loyalty",
		ValidUntil: &until,
	}))

	openEnded := newSubscription(t, uuid.New())
	require.NoError(t, openEnded.ApplyDiscount(domain.Discount{
		Type:   domain.DiscountPercentage,
		Value:  10,
		Reason: "loyalty",
	}))

	require.NoError(t, repo.Save(ctx, expiring))
	require.NoError(t, repo.Save(ctx, openEnded))

	subs, err := repo.FindWithExpiringDiscounts(ctx, date(2025, time.February, 2))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, expiring.ID(), subs[0].ID())
}

func TestMemoryRepository_FindDueForRenewal(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	due := newSubscription(t, uuid.New())

	noBilling, err := domain.NewSubscription(domain.CreateSpec{
		CustomerID:       uuid.New(),
		Kind:             domain.KindPersonalTraining,
		PlanID:           "pt-8",
		Frequency:        domain.BillingMonthly,
		Price:            240,
		SessionsIncluded: 8,
		StartDate:        date(2025, time.January, 1),
		RecurringBilling: false,
	})
	require.NoError(t, err)

	require.NoError(t, repo.Save(ctx, due))
	require.NoError(t, repo.Save(ctx, noBilling))

	subs, err := repo.FindDueForRenewal(ctx, date(2025, time.February, 1))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, due.ID(), subs[0].ID())

	none, err := repo.FindDueForRenewal(ctx, date(2025, time.January, 15))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository_FindTrialsExpiring(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	trial, err := domain.NewSubscription(domain.CreateSpec{
		CustomerID:       uuid.New(),
		Kind:             domain.KindPersonalTraining,
		PlanID:           "pt-8",
		Frequency:        domain.BillingMonthly,
		Price:            240,
		SessionsIncluded: 8,
		StartDate:        date(2025, time.January, 1),
		RecurringBilling: true,
		Trial:            &domain.TrialSpec{Sessions: 2, Price: 49, DurationDays: 14},
	})
	require.NoError(t, err)

	active := newSubscription(t, uuid.New())
	require.NoError(t, repo.Save(ctx, trial))
	require.NoError(t, repo.Save(ctx, active))

	subs, err := repo.FindTrialsExpiring(ctx, date(2025, time.January, 15))
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, trial.ID(), subs[0].ID())

	none, err := repo.FindTrialsExpiring(ctx, date(2025, time.January, 10))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemoryRepository_Delete(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	sub := newSubscription(t, uuid.New())
	require.NoError(t, repo.Save(ctx, sub))
	require.NoError(t, repo.Delete(ctx, sub.ID()))

	found, err := repo.FindByID(ctx, sub.ID())
	require.NoError(t, err)
	assert.Nil(t, found)
}
