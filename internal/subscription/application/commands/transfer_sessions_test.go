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

func TestTransferSessionsHandler_Handle(t *testing.T) {
	t.Run("transfers an explicit count", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewTransferSessionsHandler(repo, outboxRepo, uow, locking.NewKeyedMutex(), 5)

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		count := 3
		result, err := handler.Handle(ctx, TransferSessionsCommand{
			SubscriptionID:    sub.ID(),
			Count:             &count,
			DestinationPeriod: "2025-02",
		})

		require.NoError(t, err)
		assert.Equal(t, 3, result.Sessions)
		assert.Equal(t, 5, result.Available)
		assert.Equal(t, "2025-02", result.DestinationPeriod)
	})

	t.Run("caps transfer-all at the policy limit", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewTransferSessionsHandler(repo, outboxRepo, uow, locking.NewKeyedMutex(), 5)

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, TransferSessionsCommand{
			SubscriptionID:    sub.ID(),
			DestinationPeriod: "2025-02",
		})

		require.NoError(t, err)
		assert.Equal(t, 5, result.Sessions)
		assert.Equal(t, 3, result.Available)
	})

	t.Run("rejects an explicit count above the limit", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewTransferSessionsHandler(repo, outboxRepo, uow, locking.NewKeyedMutex(), 5)

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)

		count := 8
		result, err := handler.Handle(ctx, TransferSessionsCommand{
			SubscriptionID:    sub.ID(),
			Count:             &count,
			DestinationPeriod: "2025-02",
		})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrTransferLimitExceeded)
		assert.Equal(t, 8, sub.AvailableSessions())
	})

	t.Run("fails when subscription is missing", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewTransferSessionsHandler(repo, outboxRepo, uow, locking.NewKeyedMutex(), 5)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")
		id := uuid.New()

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, id).Return(nil, nil)

		result, err := handler.Handle(ctx, TransferSessionsCommand{
			SubscriptionID:    id,
			DestinationPeriod: "2025-02",
		})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
	})
}

func TestApplyPendingTransfersHandler_Handle(t *testing.T) {
	t.Run("folds due transfers into the cycle", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewApplyPendingTransfersHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		count := 3
		_, err := sub.TransferSessions(&count, sub.CurrentPeriod(), "2025-02", 5)
		require.NoError(t, err)
		sub.ClearDomainEvents()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, ApplyPendingTransfersCommand{
			SubscriptionID: sub.ID(),
			Today:          time.Date(2025, time.February, 5, 0, 0, 0, 0, time.UTC),
		})

		require.NoError(t, err)
		assert.Equal(t, 3, result.Sessions)
		assert.Equal(t, 8, result.Available)
	})

	t.Run("leaves future transfers pending", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewApplyPendingTransfersHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		count := 3
		_, err := sub.TransferSessions(&count, sub.CurrentPeriod(), "2025-03", 5)
		require.NoError(t, err)
		sub.ClearDomainEvents()

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, ApplyPendingTransfersCommand{
			SubscriptionID: sub.ID(),
			Today:          time.Date(2025, time.February, 5, 0, 0, 0, 0, time.UTC),
		})

		require.NoError(t, err)
		assert.Equal(t, 0, result.Sessions)
		assert.Equal(t, 5, result.Available)
	})
}

func TestRecordUsageHandler_Handle(t *testing.T) {
	t.Run("records usage", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewRecordUsageHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)
		repo.On("Save", txCtx, sub).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		result, err := handler.Handle(ctx, RecordUsageCommand{SubscriptionID: sub.ID(), Count: 3})

		require.NoError(t, err)
		assert.Equal(t, 5, result.Available)
		assert.Equal(t, 3, result.Used)
	})

	t.Run("rejects over-consumption", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewRecordUsageHandler(repo, outboxRepo, uow, locking.NewKeyedMutex())

		sub := activeSubscription(t)
		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("FindByID", txCtx, sub.ID()).Return(sub, nil)

		result, err := handler.Handle(ctx, RecordUsageCommand{SubscriptionID: sub.ID(), Count: 9})

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrInsufficientSessions)
	})
}
