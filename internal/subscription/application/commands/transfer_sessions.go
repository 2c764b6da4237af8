package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// TransferSessionsCommand moves unused sessions into a future billing
// period. A nil Count transfers everything available up to the policy cap.
type TransferSessionsCommand struct {
	SubscriptionID    uuid.UUID
	Count             *int
	DestinationPeriod string
	ActorID           uuid.UUID
}

// TransferSessionsResult contains the result of a session transfer.
type TransferSessionsResult struct {
	TransferID        uuid.UUID
	Sessions          int
	Available         int
	DestinationPeriod string
}

// TransferSessionsHandler handles the TransferSessionsCommand.
type TransferSessionsHandler struct {
	repo            domain.Repository
	outboxRepo      outbox.Repository
	uow             sharedApplication.UnitOfWork
	locks           *locking.KeyedMutex
	maxTransferable int
}

// NewTransferSessionsHandler creates a new TransferSessionsHandler.
// maxTransferable caps how many sessions one transfer may move; zero means
// no cap.
func NewTransferSessionsHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex, maxTransferable int) *TransferSessionsHandler {
	return &TransferSessionsHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks, maxTransferable: maxTransferable}
}

// Handle executes the TransferSessionsCommand.
func (h *TransferSessionsHandler) Handle(ctx context.Context, cmd TransferSessionsCommand) (*TransferSessionsResult, error) {
	var result *TransferSessionsResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			transfer, err := sub.TransferSessions(cmd.Count, sub.CurrentPeriod(), cmd.DestinationPeriod, h.maxTransferable)
			if err != nil {
				return err
			}
			result = &TransferSessionsResult{
				TransferID:        transfer.ID,
				Sessions:          transfer.Sessions,
				Available:         sub.AvailableSessions(),
				DestinationPeriod: transfer.DestinationPeriod,
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
