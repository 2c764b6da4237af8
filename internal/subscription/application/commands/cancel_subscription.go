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

// CancelSubscriptionCommand contains the data needed to cancel a subscription.
type CancelSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Reason         string
	Immediate      bool
	ActorID        uuid.UUID
}

// CancelSubscriptionResult contains the result of cancelling a subscription.
type CancelSubscriptionResult struct {
	State          domain.State
	UnusedSessions int
	ExpirationDate time.Time
}

// CancelSubscriptionHandler handles the CancelSubscriptionCommand.
type CancelSubscriptionHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
	now        func() time.Time
}

// NewCancelSubscriptionHandler creates a new CancelSubscriptionHandler.
func NewCancelSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *CancelSubscriptionHandler {
	return &CancelSubscriptionHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks, now: time.Now}
}

// Handle executes the CancelSubscriptionCommand.
func (h *CancelSubscriptionHandler) Handle(ctx context.Context, cmd CancelSubscriptionCommand) (*CancelSubscriptionResult, error) {
	var result *CancelSubscriptionResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			unused := sub.AvailableSessions()
			if err := sub.Cancel(cmd.Reason, cmd.Immediate, h.now().UTC()); err != nil {
				return err
			}
			result = &CancelSubscriptionResult{
				State:          sub.State(),
				UnusedSessions: unused,
				ExpirationDate: sub.ExpirationDate(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
