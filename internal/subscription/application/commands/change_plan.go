package commands

import (
	"context"

	"github.com/coachdesk/coachdesk/internal/catalog"
	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// ChangePlanCommand switches a subscription to another plan, either right
// away or staged for the next renewal.
type ChangePlanCommand struct {
	SubscriptionID uuid.UUID
	NewPlanID      string
	Immediate      bool
	ActorID        uuid.UUID
}

// ChangePlanResult contains the result of a plan change.
type ChangePlanResult struct {
	PlanID   string
	Price    float64
	Sessions int
	Staged   bool
}

// ChangePlanHandler handles the ChangePlanCommand.
type ChangePlanHandler struct {
	repo       domain.Repository
	catalog    catalog.Catalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
}

// NewChangePlanHandler creates a new ChangePlanHandler.
func NewChangePlanHandler(repo domain.Repository, cat catalog.Catalog, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *ChangePlanHandler {
	return &ChangePlanHandler{repo: repo, catalog: cat, outboxRepo: outboxRepo, uow: uow, locks: locks}
}

// Handle executes the ChangePlanCommand.
func (h *ChangePlanHandler) Handle(ctx context.Context, cmd ChangePlanCommand) (*ChangePlanResult, error) {
	plan, err := h.catalog.Plan(cmd.NewPlanID)
	if err != nil {
		return nil, err
	}

	var result *ChangePlanResult
	err = withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			if err := sub.ChangePlan(plan.ID, plan.SessionsIncluded, plan.Price, cmd.Immediate); err != nil {
				return err
			}
			result = &ChangePlanResult{
				PlanID:   sub.PlanID(),
				Price:    sub.Price(),
				Sessions: sub.AvailableSessions(),
				Staged:   !cmd.Immediate,
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
