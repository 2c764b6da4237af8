package commands

import (
	"context"
	"time"

	"github.com/coachdesk/coachdesk/internal/catalog"
	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/locking"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// ConvertTrialCommand promotes a trial subscription to a regular one. An
// empty PlanID converts onto the trial's own plan.
type ConvertTrialCommand struct {
	SubscriptionID uuid.UUID
	PlanID         string
	ActorID        uuid.UUID
}

// ConvertTrialResult contains the result of converting a trial.
type ConvertTrialResult struct {
	State          domain.State
	PlanID         string
	Price          float64
	Sessions       int
	ExpirationDate time.Time
}

// ConvertTrialHandler handles the ConvertTrialCommand.
type ConvertTrialHandler struct {
	repo       domain.Repository
	catalog    catalog.Catalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
	now        func() time.Time
}

// NewConvertTrialHandler creates a new ConvertTrialHandler.
func NewConvertTrialHandler(repo domain.Repository, cat catalog.Catalog, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex) *ConvertTrialHandler {
	return &ConvertTrialHandler{repo: repo, catalog: cat, outboxRepo: outboxRepo, uow: uow, locks: locks, now: time.Now}
}

// Handle executes the ConvertTrialCommand.
func (h *ConvertTrialHandler) Handle(ctx context.Context, cmd ConvertTrialCommand) (*ConvertTrialResult, error) {
	var result *ConvertTrialResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.SubscriptionID, cmd.ActorID,
		func(txCtx context.Context, sub *domain.Subscription) error {
			planID := cmd.PlanID
			if planID == "" {
				planID = sub.PlanID()
			}
			plan, err := h.catalog.Plan(planID)
			if err != nil {
				return err
			}

			if err := sub.ConvertTrial(h.now().UTC(), plan.SessionsIncluded, plan.Price); err != nil {
				return err
			}
			if planID != sub.PlanID() {
				if err := sub.ChangePlan(plan.ID, plan.SessionsIncluded, plan.Price, true); err != nil {
					return err
				}
			}

			result = &ConvertTrialResult{
				State:          sub.State(),
				PlanID:         sub.PlanID(),
				Price:          sub.Price(),
				Sessions:       sub.AvailableSessions(),
				ExpirationDate: sub.ExpirationDate(),
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
