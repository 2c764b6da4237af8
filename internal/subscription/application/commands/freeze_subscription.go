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

// FreezeSubscriptionCommand contains the data needed to freeze a subscription.
type FreezeSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Start          time.Time
	End            time.Time
	Reason         string
	AutoResume     bool
	ActorID        uuid.UUID
}

// FreezeSubscriptionResult contains the result of freezing a subscription.
type FreezeSubscriptionResult struct {
	State          domain.State
	FrozenDays     int
	ExpirationDate time.Time
}

// FreezeSubscriptionHandler handles the FreezeSubscriptionCommand.
type FreezeSubscriptionHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewFreezeSubscriptionHandler creates a new FreezeSubscriptionHandler.
func NewFreezeSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *FreezeSubscriptionHandler {
	return &FreezeSubscriptionHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the FreezeSubscriptionCommand.
func (h *FreezeSubscriptionHandler) Handle(ctx context.Context, cmd FreezeSubscriptionCommand) (*FreezeSubscriptionResult, error) {
	var result *FreezeSubscriptionResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.StartFreeze(cmd.Start, cmd.End, cmd.Reason, cmd.AutoResume); err != nil {
				return err
			}
			result = &FreezeSubscriptionResult{
				State:          sub.State(),
				FrozenDays:     sub.Freeze().Days,
				ExpirationDate: sub.ExpirationDate(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
