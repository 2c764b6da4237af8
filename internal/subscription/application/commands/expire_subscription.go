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

// ExpireSubscriptionCommand moves a lapsed subscription to Expired. Issued
// by the trial and renewal sweeps.
type ExpireSubscriptionCommand struct {
	SubscriptionID uuid.UUID
	Reason         string
	Today          time.Time
	ActorID        uuid.UUID
}

// ExpireSubscriptionHandler handles the ExpireSubscriptionCommand.
type ExpireSubscriptionHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewExpireSubscriptionHandler creates a new ExpireSubscriptionHandler.
func NewExpireSubscriptionHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *ExpireSubscriptionHandler {
	return &ExpireSubscriptionHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the ExpireSubscriptionCommand.
func (h *ExpireSubscriptionHandler) Handle(ctx context.Context, cmd ExpireSubscriptionCommand) error {
	return withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			return sub.MarkExpired(cmd.Reason, cmd.Today)
		})
}
