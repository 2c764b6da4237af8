package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// AddBonusSessionsCommand grants free sessions for the current cycle.
type AddBonusSessionsCommand struct {
	SubscriptionID uuid.UUID
	Count          int
	Reason         string
	ActorID        uuid.UUID
}

// AddBonusSessionsResult contains the result of granting bonus sessions.
type AddBonusSessionsResult struct {
	Available int
}

// AddBonusSessionsHandler handles the AddBonusSessionsCommand.
type AddBonusSessionsHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewAddBonusSessionsHandler creates a new AddBonusSessionsHandler.
func NewAddBonusSessionsHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *AddBonusSessionsHandler {
	return &AddBonusSessionsHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the AddBonusSessionsCommand.
func (h *AddBonusSessionsHandler) Handle(ctx context.Context, cmd AddBonusSessionsCommand) (*AddBonusSessionsResult, error) {
	var result *AddBonusSessionsResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.AddBonusSessions(cmd.Count, cmd.Reason); err != nil {
				return err
			}
			result = &AddBonusSessionsResult{Available: sub.AvailableSessions()}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
