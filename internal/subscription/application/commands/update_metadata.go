package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// UpdateMetadataCommand stores free-form key/value pairs on a subscription.
type UpdateMetadataCommand struct {
	SubscriptionID uuid.UUID
	Values         map[string]string
	ActorID        uuid.UUID
}

// UpdateMetadataHandler handles the UpdateMetadataCommand.
type UpdateMetadataHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewUpdateMetadataHandler creates a new UpdateMetadataHandler.
func NewUpdateMetadataHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *UpdateMetadataHandler {
	return &UpdateMetadataHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the UpdateMetadataCommand.
func (h *UpdateMetadataHandler) Handle(ctx context.Context, cmd UpdateMetadataCommand) error {
	return withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			for key, value := range cmd.Values {
				sub.SetMetadataValue(key, value)
			}
			return nil
		})
}
