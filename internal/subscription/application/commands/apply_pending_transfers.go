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

// ApplyPendingTransfersCommand folds transfers whose destination period has
// arrived into the subscription's current cycle.
type ApplyPendingTransfersCommand struct {
	SubscriptionID uuid.UUID
	Today          time.Time
	ActorID        uuid.UUID
}

// ApplyPendingTransfersResult contains the result of applying transfers.
type ApplyPendingTransfersResult struct {
	Sessions  int
	Available int
}

// ApplyPendingTransfersHandler handles the ApplyPendingTransfersCommand.
type ApplyPendingTransfersHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewApplyPendingTransfersHandler creates a new ApplyPendingTransfersHandler.
func NewApplyPendingTransfersHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *ApplyPendingTransfersHandler {
	return &ApplyPendingTransfersHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the ApplyPendingTransfersCommand.
func (h *ApplyPendingTransfersHandler) Handle(ctx context.Context, cmd ApplyPendingTransfersCommand) (*ApplyPendingTransfersResult, error) {
	var result *ApplyPendingTransfersResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			applied, err := sub.ApplyPendingTransfers(cmd.Today)
			if err != nil {
				return err
			}
			result = &ApplyPendingTransfersResult{
				Sessions:  applied,
				Available: sub.AvailableSessions(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
