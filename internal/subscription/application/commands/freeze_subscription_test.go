package commands

import (
	"context"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func activeSubscription(t *testing.T) *domain.Subscription {
	t.Helper()
	sub, err := domain.NewSubscription(domain.CreateSpec{
		CustomerID:       uuid.New(),
		Kind:             domain.KindPersonalTraining,
		PlanID:           "pt-8",
		Frequency:        domain.BillingMonthly,
		Price:            240,
		SessionsIncluded: 8,
		StartDate:        time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		RecurringBilling: true,
	})
	require.NoError(t, err)
	sub.ClearDomainEvents()
	return sub
}

func TestFreezeSubscriptionHandler_Handle(t *testing.T) {
	actorID := uuid.New()

	t.Run("freezes and shifts expiration", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewFreezeSubscriptionHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, FreezeSubscriptionCommand{
			SubscriptionID: sub.ID(),
			Start:          time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			End:            time.Date(2025, time.February, 9, 0, 0, 0, 0, time.UTC),
			Reason:         "vacation",
			AutoResume:     true,
			ActorID:        actorID,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StateFrozen, result.State)
		assert.Equal(t, 30, result.FrozenDays)
		assert.Equal(t, time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC), result.ExpirationDate)

		repo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("fails when subscription is missing", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewFreezeSubscriptionHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")
		id := uuid.New()

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, id).Return(nil, nil)

		result, err := handler.Handle(ctx, FreezeSubscriptionCommand{
			SubscriptionID: id,
			Start:          time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			End:            time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
		})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	})

	t.Run("rejects an inverted date range", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewFreezeSubscriptionHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)

		result, err := handler.Handle(ctx, FreezeSubscriptionCommand{
			SubscriptionID: sub.ID(),
			Start:          time.Date(2025, time.January, 20, 0, 0, 0, 0, time.UTC),
			End:            time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
		})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	})
}

func TestUnfreezeSubscriptionHandler_Handle(t *testing.T) {
	t.Run("resumes a frozen subscription", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewUnfreezeSubscriptionHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		require.NoError(t, sub.StartFreeze(
			time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC),
			time.Date(2025, time.February, 9, 0, 0, 0, 0, time.UTC),
			"travel", false))
		sub.ClearDomainEvents()
		shifted := sub.ExpirationDate()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, UnfreezeSubscriptionCommand{SubscriptionID: sub.ID()})

		require.NoError(t, err)
		assert.Equal(t, domain.StateActive, result.State)
		assert.True(t, result.RecurringBilling)
		assert.Equal(t, shifted, result.ExpirationDate, "freeze-time shift persists")
	})

	t.Run("fails when not frozen", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewUnfreezeSubscriptionHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)

		result, err := handler.Handle(ctx, UnfreezeSubscriptionCommand{SubscriptionID: sub.ID()})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNotFrozen)
	})
}
