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

// UnfreezeSubscriptionCommand contains the data needed to resume a frozen
// subscription.
type UnfreezeSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	ActorID        uuid.UUID
}

// UnfreezeSubscriptionResult contains the result of resuming a subscription.
type UnfreezeSubscriptionResult struct {
	State            domain.State
	RecurringBilling bool
	ExpirationDate   time.Time
}

// UnfreezeSubscriptionHandler handles the UnfreezeSubscriptionCommand.
type UnfreezeSubscriptionHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewUnfreezeSubscriptionHandler creates a new UnfreezeSubscriptionHandler.
func NewUnfreezeSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *UnfreezeSubscriptionHandler {
	return &UnfreezeSubscriptionHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the UnfreezeSubscriptionCommand.
func (h *UnfreezeSubscriptionHandler) Handle(ctx context.Context, cmd UnfreezeSubscriptionCommand) (*UnfreezeSubscriptionResult, error) {
	var result *UnfreezeSubscriptionResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.EndFreeze(); err != nil {
				return err
			}
			result = &UnfreezeSubscriptionResult{
				State:            sub.State(),
				RecurringBilling: sub.RecurringBilling(),
				ExpirationDate:   sub.ExpirationDate(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
