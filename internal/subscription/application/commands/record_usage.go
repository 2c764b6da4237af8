package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// RecordUsageCommand consumes sessions from the current cycle.
type RecordUsageCommand struct {
	SubscriptionID uuid.UUID
	Count          int
	ActorID        uuid.UUID
}

// RecordUsageResult contains the result of recording usage.
type RecordUsageResult struct {
	Available int
	Used      int
}

// RecordUsageHandler handles the RecordUsageCommand.
type RecordUsageHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewRecordUsageHandler creates a new RecordUsageHandler.
func NewRecordUsageHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *RecordUsageHandler {
	return &RecordUsageHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the RecordUsageCommand.
func (h *RecordUsageHandler) Handle(ctx context.Context, cmd RecordUsageCommand) (*RecordUsageResult, error) {
	var result *RecordUsageResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.RecordUsage(cmd.Count); err != nil {
				return err
			}
			result = &RecordUsageResult{
				Available: sub.AvailableSessions(),
				Used:      sub.Ledger().Used(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
