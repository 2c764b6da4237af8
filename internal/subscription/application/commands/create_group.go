package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/coachdesk/coachdesk/internal/catalog"
	sharedApplication "github.com/coachdesk/coachdesk/internal/shared/application"
	"github.com/coachdesk/coachdesk/internal/shared/infrastructure/outbox"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// GroupMemberSpec names one founding member of a new group.
type GroupMemberSpec struct {
	CustomerID uuid.UUID
	Name       string
}

// CreateGroupCommand creates a group parent subscription together with an
// individual subscription per founding member, priced at the pro-rata share
// of the discounted group total.
type CreateGroupCommand struct {
	OwnerCustomerID uuid.UUID
	TrainerID       *uuid.UUID
	PlanID          string
	StartDate       time.Time
	DiscountType    domain.DiscountType
	DiscountValue   float64
	MinMembers      int
	Members         []GroupMemberSpec
	ActorID         uuid.UUID
}

// CreateGroupResult contains the result of creating a group.
type CreateGroupResult struct {
	GroupSubscriptionID   uuid.UUID
	MemberSubscriptionIDs []uuid.UUID
	MinMembers            int
	Pricing               domain.GroupPricing
}

// CreateGroupHandler handles the CreateGroupCommand.
type CreateGroupHandler struct {
	repo       domain.Repository
	catalog    catalog.Catalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
}

// NewCreateGroupHandler creates a new CreateGroupHandler.
func NewCreateGroupHandler(repo domain.Repository, cat catalog.Catalog, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork) *CreateGroupHandler {
	return &CreateGroupHandler{repo: repo, catalog: cat, outboxRepo: outboxRepo, uow: uow}
}

// Handle executes the CreateGroupCommand.
func (h *CreateGroupHandler) Handle(ctx context.Context, cmd CreateGroupCommand) (*CreateGroupResult, error) {
	if len(cmd.Members) == 0 {
		return nil, fmt.Errorf("%w: a group needs at least one member", domain.ErrInvalidSpec)
	}

	plan, err := h.catalog.Plan(cmd.PlanID)
	if err != nil {
		return nil, err
	}

	group, err := domain.NewSubscription(domain.CreateSpec{
		CustomerID:       cmd.OwnerCustomerID,
		TrainerID:        cmd.TrainerID,
		Kind:             plan.Kind,
		PlanID:           plan.ID,
		Frequency:        plan.Frequency,
		Price:            plan.Price,
		SessionsIncluded: plan.SessionsIncluded,
		StartDate:        cmd.StartDate,
		RecurringBilling: true,
	})
	if err != nil {
		return nil, err
	}

	terms := domain.GroupTerms{
		Discount: domain.Discount{
			Type:      cmd.DiscountType,
			Value:     cmd.DiscountValue,
			ValidFrom: cmd.StartDate,
		},
		MinMembers: cmd.MinMembers,
	}
	if err := group.ConfigureGroup(terms); err != nil {
		return nil, err
	}

	members := make([]*domain.Subscription, 0, len(cmd.Members))
	basePrices := make([]float64, 0, len(cmd.Members))
	for _, spec := range cmd.Members {
		member, err := domain.NewSubscription(domain.CreateSpec{
			CustomerID:       spec.CustomerID,
			TrainerID:        cmd.TrainerID,
			Kind:             plan.Kind,
			PlanID:           plan.ID,
			Frequency:        plan.Frequency,
			Price:            plan.Price,
			SessionsIncluded: plan.SessionsIncluded,
			StartDate:        cmd.StartDate,
			RecurringBilling: true,
		})
		if err != nil {
			return nil, err
		}
		member.LinkGroup(group.ID())
		if _, err := group.AddMember(spec.CustomerID, member.ID(), spec.Name, cmd.StartDate); err != nil {
			return nil, err
		}
		members = append(members, member)
		basePrices = append(basePrices, plan.Price)
	}

	pricing, err := group.RepriceGroup(basePrices)
	if err != nil {
		return nil, err
	}
	for _, member := range members {
		if err := member.ApplyGroupRate(pricing.PerMember); err != nil {
			return nil, err
		}
	}

	var result *CreateGroupResult
	err = sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		if err := h.repo.Save(txCtx, group); err != nil {
			return err
		}
		if err := stageEvents(txCtx, h.outboxRepo, group, cmd.ActorID); err != nil {
			return err
		}
		memberIDs := make([]uuid.UUID, 0, len(members))
		for _, member := range members {
			if err := h.repo.Save(txCtx, member); err != nil {
				return err
			}
			if err := stageEvents(txCtx, h.outboxRepo, member, cmd.ActorID); err != nil {
				return err
			}
			memberIDs = append(memberIDs, member.ID())
		}
		result = &CreateGroupResult{
			GroupSubscriptionID:   group.ID(),
			MemberSubscriptionIDs: memberIDs,
			MinMembers:            cmd.MinMembers,
			Pricing:               pricing,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
