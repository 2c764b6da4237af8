package commands

import (
	"context"
	"time"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// ApplyDiscountCommand applies a percentage or fixed discount.
type ApplyDiscountCommand struct {
	SubscriptionID uuid.UUID
	Type           domain.DiscountType
	Value          float64
	Reason         string
	ValidFrom      time.Time
	ValidUntil     *time.Time
	ActorID        uuid.UUID
}

// ApplyDiscountResult contains the result of applying a discount.
type ApplyDiscountResult struct {
	Price         float64
	OriginalPrice float64
}

// ApplyDiscountHandler handles the ApplyDiscountCommand.
type ApplyDiscountHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewApplyDiscountHandler creates a new ApplyDiscountHandler.
func NewApplyDiscountHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *ApplyDiscountHandler {
	return &ApplyDiscountHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the ApplyDiscountCommand.
func (h *ApplyDiscountHandler) Handle(ctx context.Context, cmd ApplyDiscountCommand) (*ApplyDiscountResult, error) {
	var result *ApplyDiscountResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			discount := domain.Discount{
				Type:       cmd.Type,
				Value:      cmd.Value,
				Reason:     cmd.Reason,
				ValidFrom:  cmd.ValidFrom,
				ValidUntil: cmd.ValidUntil,
			}
			if err := sub.ApplyDiscount(discount); err != nil {
				return err
			}
			result = &ApplyDiscountResult{
				Price:         sub.Price(),
				OriginalPrice: *sub.OriginalPrice(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
