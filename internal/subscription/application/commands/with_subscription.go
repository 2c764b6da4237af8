package commands

import (
	"context"

	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// withSubscription runs fn against one subscription under its keyed lock and
// inside a unit of work. The aggregate and its staged events are persisted
// together after fn returns.
func withSubscription(
	ctx context.Context,
	repo domain.Repository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	locks *locking.KeyedMutex,
	subscriptionID uuid.UUID,
	actorID uuid.UUID,
	fn func(txCtx context.Context, sub *domain.Subscription) error,
) error {
	unlock := locks.Lock(subscriptionID)
	defer unlock()

	return sharedApplication.WithUnitOfWork(ctx, uow, func(txCtx context.Context) error {
		sub, err := repo.FindByID(txCtx, subscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return domain.ErrSubscriptionNotFound
		}

		if err := fn(txCtx, sub); err != nil {
			return err
		}

		if err := repo.Save(txCtx, sub); err != nil {
			return err
		}
		return stageEvents(txCtx, outboxRepo, sub, actorID)
	})
}
