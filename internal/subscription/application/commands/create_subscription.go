// Package commands contains the write-side handlers of the subscription
// context. Every handler loads the aggregate under its per-subscription lock,
// mutates it, and persists aggregate and outbox messages in one transaction.
package commands

import (
	"context"
	"time"

	"github.com/coachdesk/coachdesk/internal/catalog"
	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// CreateSubscriptionCommand contains the data needed to create a subscription.
type CreateSubscriptionCommand struct {
	CustomerID       uuid.UUID
	TrainerID        *uuid.UUID
	PlanID           string
	StartDate        time.Time
	RecurringBilling bool
	WithTrial        bool
	ActorID          uuid.UUID
}

// CreateSubscriptionResult contains the result of creating a subscription.
type CreateSubscriptionResult struct {
	SubscriptionID uuid.UUID
	State          domain.State
	Price          float64
	Sessions       int
	ExpirationDate time.Time
}

// CreateSubscriptionHandler handles the CreateSubscriptionCommand.
type CreateSubscriptionHandler struct {
	repo       domain.Repository
	catalog    catalog.Catalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewCreateSubscriptionHandler creates a new CreateSubscriptionHandler.
func NewCreateSubscriptionHandler(repo domain.Repository, cat catalog.Catalog, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *CreateSubscriptionHandler {
	return &CreateSubscriptionHandler{
		repo:       repo,
		catalog:    cat,
		outboxRepo: outboxRepo,
		uow:        uow,
	}
}

// Handle executes the CreateSubscriptionCommand.
func (h *CreateSubscriptionHandler) Handle(ctx context.Context, cmd CreateSubscriptionCommand) (*CreateSubscriptionResult, error) {
	plan, err := h.catalog.Plan(cmd.PlanID)
	if err != nil {
		return nil, err
	}

	spec := domain.CreateSpec{
		CustomerID:       cmd.CustomerID,
		TrainerID:        cmd.TrainerID,
		Kind:             plan.Kind,
		PlanID:           plan.ID,
		Frequency:        plan.Frequency,
		Price:            plan.Price,
		SessionsIncluded: plan.SessionsIncluded,
		StartDate:        cmd.StartDate,
		RecurringBilling: cmd.RecurringBilling,
	}
	if cmd.WithTrial {
		spec.Trial = &domain.TrialSpec{
			Sessions:     plan.TrialSessions,
			Price:        plan.TrialPrice,
			DurationDays: plan.TrialDays,
		}
	}

	sub, err := domain.NewSubscription(spec)
	if err != nil {
		return nil, err
	}

	var result *CreateSubscriptionResult
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.repo.Save(txCtx, sub); err != nil {
			return err
		}
		if err := stageEvents(txCtx, h.outboxRepo, sub, cmd.ActorID); err != nil {
			return err
		}

		result = &CreateSubscriptionResult{
			SubscriptionID: sub.ID(),
			State:          sub.State(),
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
