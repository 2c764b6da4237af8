package commands

import (
	"context"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestApplyDiscountHandler_Handle(t *testing.T) {
	t.Run("applies a percentage discount", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewApplyDiscountHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, ApplyDiscountCommand{
			SubscriptionID: sub.ID(),
			Type:           domain.DiscountPercentage,
			Value:          20,
			Reason:         "loyalty",
			ValidFrom:      time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		})

		require.NoError(t, err)
		assert.Equal(t, 192.0, result.Price)
		assert.Equal(t, 240.0, result.OriginalPrice)
	})

	t.Run("rejects an invalid discount", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewApplyDiscountHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)

		result, err := handler.Handle(ctx, ApplyDiscountCommand{
			SubscriptionID: sub.ID(),
			Type:           domain.DiscountPercentage,
			Value:          150,
			ValidFrom:      time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrInvalidDiscount)
	})
}

func TestRemoveDiscountHandler_Handle(t *testing.T) {
	t.Run("removes the discount and restores the price", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewRemoveDiscountHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		require.NoError(t, sub.ApplyDiscount(domain.Discount{
			Type:      domain.DiscountPercentage,
			Value:     20,
			ValidFrom: time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC),
		}))
		sub.ClearDomainEvents()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, RemoveDiscountCommand{SubscriptionID: sub.ID(), Reason: "expired"})

		require.NoError(t, err)
		assert.Equal(t, 240.0, result.Price)
	})

	t.Run("fails with no active discount", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewRemoveDiscountHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)

		result, err := handler.Handle(ctx, RemoveDiscountCommand{SubscriptionID: sub.ID()})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrNoActiveDiscount)
	})
}
