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

// RenewSubscriptionCommand rolls a subscription into its next billing cycle.
// Issued by the renewal sweep, not by customers.
type RenewSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Today          time.Time
	ActorID        uuid.UUID
}

// RenewSubscriptionResult contains the result of a renewal.
type RenewSubscriptionResult struct {
	PlanID          string
	Price           float64
	Sessions        int
	ExpirationDate  time.Time
	NextRenewalDate time.Time
}

// RenewSubscriptionHandler handles the RenewSubscriptionCommand.
type RenewSubscriptionHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewRenewSubscriptionHandler creates a new RenewSubscriptionHandler.
func NewRenewSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *RenewSubscriptionHandler {
	return &RenewSubscriptionHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the RenewSubscriptionCommand.
func (h *RenewSubscriptionHandler) Handle(ctx context.Context, cmd RenewSubscriptionCommand) (*RenewSubscriptionResult, error) {
	var result *RenewSubscriptionResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.Renew(cmd.Today); err != nil {
				return err
			}
			result = &RenewSubscriptionResult{
				PlanID:          sub.PlanID(),
				Price:           sub.Price(),
				Sessions:        sub.AvailableSessions(),
				ExpirationDate:  sub.ExpirationDate(),
				NextRenewalDate: sub.NextRenewalDate(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
