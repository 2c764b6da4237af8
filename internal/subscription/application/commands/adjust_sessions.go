package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// AdjustSessionsCommand applies a signed session correction to the current
// cycle, or stages it for the next renewal.
type AdjustSessionsCommand struct {
	SubscriptionID uuid.UUID
	Delta          int
	Reason         string
	EffectiveNow   bool
	ActorID        uuid.UUID
}

// AdjustSessionsResult contains the result of a session adjustment.
type AdjustSessionsResult struct {
	Available int
	Clamped   bool
	Staged    bool
}

// AdjustSessionsHandler handles the AdjustSessionsCommand.
type AdjustSessionsHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewAdjustSessionsHandler creates a new AdjustSessionsHandler.
func NewAdjustSessionsHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *AdjustSessionsHandler {
	return &AdjustSessionsHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the AdjustSessionsCommand.
func (h *AdjustSessionsHandler) Handle(ctx context.Context, cmd AdjustSessionsCommand) (*AdjustSessionsResult, error) {
	var result *AdjustSessionsResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			clamped, err := sub.AdjustSessions(cmd.Delta, cmd.Reason, cmd.EffectiveNow)
			if err != nil {
				return err
			}
			result = &AdjustSessionsResult{
				Available: sub.AvailableSessions(),
				Clamped:   clamped,
				Staged:    !cmd.EffectiveNow,
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
