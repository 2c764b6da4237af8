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

// AddGroupMemberCommand joins a customer to a group. A new individual
// subscription is created for the member on the group's plan.
type AddGroupMemberCommand struct {
	GroupSubscriptionID uuid.UUID
	CustomerID          uuid.UUID
	Name                string
	ActorID             uuid.UUID
}

// AddGroupMemberResult contains the result of adding a group member.
type AddGroupMemberResult struct {
	MemberID             uuid.UUID
	MemberSubscriptionID uuid.UUID
	MemberCount          int
	Pricing              domain.GroupPricing
	DiscountApplied      bool
}

// AddGroupMemberHandler handles the AddGroupMemberCommand.
type AddGroupMemberHandler struct {
	repo       domain.Repository
	catalog    catalog.Catalog
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
	// reprice controls whether existing members see the new per-member rate
	// in the running cycle or only from the next renewal. The group total is
	// always recomputed for the new member count.
	reprice bool
	now     func() time.Time
}

// NewAddGroupMemberHandler creates a new AddGroupMemberHandler. When
// retroactiveRepricing is set, existing members are repriced in the running
// cycle; otherwise their share changes only from the next renewal.
func NewAddGroupMemberHandler(repo domain.Repository, cat catalog.Catalog, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex, retroactiveRepricing bool) *AddGroupMemberHandler {
	return &AddGroupMemberHandler{repo: repo, catalog: cat, outboxRepo: outboxRepo, uow: uow, locks: locks, reprice: retroactiveRepricing, now: time.Now}
}

// Handle executes the AddGroupMemberCommand.
func (h *AddGroupMemberHandler) Handle(ctx context.Context, cmd AddGroupMemberCommand) (*AddGroupMemberResult, error) {
	var result *AddGroupMemberResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.GroupSubscriptionID, cmd.ActorID,
		func(txCtx context.Context, group *domain.Subscription) error {
			plan, err := h.catalog.Plan(group.PlanID())
			if err != nil {
				return err
			}

			existing, basePrices, err := activeMembers(txCtx, h.repo, group)
			if err != nil {
				return err
			}

			now := h.now().UTC()
			member, err := domain.NewSubscription(domain.CreateSpec{
				CustomerID:       cmd.CustomerID,
				TrainerID:        group.TrainerID(),
				Kind:             plan.Kind,
				PlanID:           plan.ID,
				Frequency:        plan.Frequency,
				Price:            plan.Price,
				SessionsIncluded: plan.SessionsIncluded,
				StartDate:        now,
				RecurringBilling: true,
			})
			if err != nil {
				return err
			}
			member.LinkGroup(group.ID())

			added, err := group.AddMember(cmd.CustomerID, member.ID(), cmd.Name, now)
			if err != nil {
				return err
			}

			basePrices = append(basePrices, plan.Price)
			pricing, err := group.RepriceGroup(basePrices)
			if err != nil {
				return err
			}

			if err := member.ApplyGroupRate(pricing.PerMember); err != nil {
				return err
			}
			if err := h.repo.Save(txCtx, member); err != nil {
				return err
			}
			if err := stageEvents(txCtx, h.outboxRepo, member, cmd.ActorID); err != nil {
				return err
			}

			if h.reprice {
				if err := repriceMembers(txCtx, h.repo, h.outboxRepo, existing, pricing.PerMember, cmd.ActorID); err != nil {
					return err
				}
			}

			result = &AddGroupMemberResult{
				MemberID:             added.ID,
				MemberSubscriptionID: member.ID(),
				MemberCount:          group.ActiveMemberCount(),
				Pricing:              pricing,
				DiscountApplied:      pricing.DiscountApplied,
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// activeMembers loads the subscriptions of a group's active members and
// collects their base prices. A member's base price is its pre-discount
// price when a discount or group rate is active.
func activeMembers(ctx context.Context, repo domain.Repository, group *domain.Subscription) ([]*domain.Subscription, []float64, error) {
	subs := make([]*domain.Subscription, 0, len(group.Members()))
	prices := make([]float64, 0, len(group.Members()))
	for _, m := range group.Members() {
		if !m.Active {
			continue
		}
		sub, err := repo.FindByID(ctx, m.SubscriptionID)
		if err != nil {
			return nil, nil, err
		}
		if sub == nil {
			return nil, nil, domain.ErrSubscriptionNotFound
		}
		subs = append(subs, sub)
		prices = append(prices, basePriceOf(sub))
	}
	return subs, prices, nil
}

func basePriceOf(sub *domain.Subscription) float64 {
	if op := sub.OriginalPrice(); op != nil {
		return *op
	}
	return sub.Price()
}

// repriceMembers applies the new per-member rate to the running cycle of
// existing members. Members carrying a personal discount keep their price;
// their share changes at the next renewal instead.
func repriceMembers(ctx context.Context, repo domain.Repository, outboxRepo outbox.Repository, members []*domain.Subscription, perMember float64, actorID uuid.UUID) error {
	for _, sub := range members {
		if sub.Discount() != nil {
			continue
		}
		if err := sub.ApplyGroupRate(perMember); err != nil {
			return err
		}
		if err := repo.Save(ctx, sub); err != nil {
			return err
		}
		if err := stageEvents(ctx, outboxRepo, sub, actorID); err != nil {
			return err
		}
	}
	return nil
}
