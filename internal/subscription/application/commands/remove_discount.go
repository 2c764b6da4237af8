package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// RemoveDiscountCommand removes the active discount and restores the
// original price.
type RemoveDiscountCommand struct {
	SubscriptionID uuid.UUID
	Reason         string
	ActorID        uuid.UUID
}

// RemoveDiscountResult contains the result of removing a discount.
type RemoveDiscountResult struct {
	Price float64
}

// RemoveDiscountHandler handles the RemoveDiscountCommand.
type RemoveDiscountHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewRemoveDiscountHandler creates a new RemoveDiscountHandler.
func NewRemoveDiscountHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *RemoveDiscountHandler {
	return &RemoveDiscountHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the RemoveDiscountCommand.
func (h *RemoveDiscountHandler) Handle(ctx context.Context, cmd RemoveDiscountCommand) (*RemoveDiscountResult, error) {
	var result *RemoveDiscountResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.RemoveDiscount(cmd.Reason); err != nil {
				return err
			}
			result = &RemoveDiscountResult{Price: sub.Price()}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
