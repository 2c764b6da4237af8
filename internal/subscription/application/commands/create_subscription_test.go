package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coachdesk/coachdesk/internal/catalog"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockSubscriptionRepo is a mock implementation of domain.Repository.
type mockSubscriptionRepo struct {
	mock.Mock
}

func (m *mockSubscriptionRepo) Save(ctx context.Context, sub *domain.Subscription) error {
	args := m.Called(ctx, sub)
	return args.Error(0)
}

func (m *mockSubscriptionRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*domain.Subscription, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindByGroupID(ctx context.Context, groupID uuid.UUID) ([]*domain.Subscription, error) {
	args := m.Called(ctx, groupID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) List(ctx context.Context, filter domain.ListFilter) ([]*domain.Subscription, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindFrozenDueForResume(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindWithExpiringDiscounts(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindDueForRenewal(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) FindTrialsExpiring(ctx context.Context, today time.Time) ([]*domain.Subscription, error) {
	args := m.Called(ctx, today)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Subscription), args.Error(1)
}

func (m *mockSubscriptionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// mockOutboxRepo is a mock implementation of outbox.Repository.
type mockOutboxRepo struct {
	mock.Mock
}

func (m *mockOutboxRepo) Save(ctx context.Context, msg *outbox.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockOutboxRepo) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *mockOutboxRepo) MarkPublished(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	args := m.Called(ctx, id, errMsg, nextRetryAt)
	return args.Error(0)
}

func (m *mockOutboxRepo) MarkDead(ctx context.Context, id int64, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *mockOutboxRepo) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	args := m.Called(ctx, olderThanDays)
	return args.Get(0).(int64), args.Error(1)
}

// mockUnitOfWork is a mock implementation of UnitOfWork.
type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type txKey struct{}

func testCatalog() catalog.Catalog {
	return catalog.DefaultCatalog()
}

func TestCreateSubscriptionHandler_Handle(t *testing.T) {
	customerID := uuid.New()
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	t.Run("successfully creates a subscription", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewCreateSubscriptionHandler(repo, testCatalog(), outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		cmd := CreateSubscriptionCommand{
			CustomerID:       customerID,
			PlanID:           "pt-8",
			StartDate:        start,
			RecurringBilling: true,
			ActorID:          customerID,
		}

		result, err := handler.Handle(ctx, cmd)

		require.NoError(t, err)
		require.NotNil(t, result)
		assert.NotEqual(t, uuid.Nil, result.SubscriptionID)
		assert.Equal(t, domain.StateActive, result.State)
		assert.Equal(t, 240.0, result.Price)
		assert.Equal(t, 8, result.Sessions)

		repo.AssertExpectations(t)
		outboxRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("creates a trial subscription", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewCreateSubscriptionHandler(repo, testCatalog(), outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Commit", txCtx).Return(nil)
		repo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(nil)

		cmd := CreateSubscriptionCommand{
			CustomerID: customerID,
			PlanID:     "pt-8",
			StartDate:  start,
			WithTrial:  true,
			ActorID:    customerID,
		}

		result, err := handler.Handle(ctx, cmd)

		require.NoError(t, err)
		assert.Equal(t, domain.StateTrial, result.State)
		assert.Equal(t, 49.0, result.Price)
		assert.Equal(t, 2, result.Sessions)

		repo.AssertExpectations(t)
	})

	t.Run("fails with unknown plan", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewCreateSubscriptionHandler(repo, testCatalog(), outboxRepo, uow)

		cmd := CreateSubscriptionCommand{
			CustomerID: customerID,
			PlanID:     "does-not-exist",
			StartDate:  start,
		}

		result, err := handler.Handle(context.Background(), cmd)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
	})

	t.Run("fails with missing customer", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewCreateSubscriptionHandler(repo, testCatalog(), outboxRepo, uow)

		cmd := CreateSubscriptionCommand{
			PlanID:    "pt-8",
			StartDate: start,
		}

		result, err := handler.Handle(context.Background(), cmd)

		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrInvalidSpec)
	})

	t.Run("fails when repository save fails", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewCreateSubscriptionHandler(repo, testCatalog(), outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(errors.New("database error"))

		cmd := CreateSubscriptionCommand{
			CustomerID: customerID,
			PlanID:     "pt-8",
			StartDate:  start,
		}

		result, err := handler.Handle(ctx, cmd)

		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "database error")

		repo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})

	t.Run("fails when outbox save fails", func(t *testing.T) {
		repo := new(mockSubscriptionRepo)
		outboxRepo := new(mockOutboxRepo)
		uow := new(mockUnitOfWork)
		handler := NewCreateSubscriptionHandler(repo, testCatalog(), outboxRepo, uow)

		ctx := context.Background()
		txCtx := context.WithValue(ctx, txKey{}, "transaction")

		uow.On("Begin", ctx).Return(txCtx, nil)
		uow.On("Rollback", txCtx).Return(nil)
		repo.On("Save", txCtx, mock.AnythingOfType("*domain.Subscription")).Return(nil)
		outboxRepo.On("SaveBatch", txCtx, mock.AnythingOfType("[]*outbox.Message")).Return(errors.New("outbox error"))

		cmd := CreateSubscriptionCommand{
			CustomerID: customerID,
			PlanID:     "pt-8",
			StartDate:  start,
		}

		result, err := handler.Handle(ctx, cmd)

		assert.Nil(t, result)
		assert.Contains(t, err.Error(), "outbox error")

		outboxRepo.AssertExpectations(t)
		uow.AssertExpectations(t)
	})
}
