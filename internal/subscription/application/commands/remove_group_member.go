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

// RemoveGroupMemberCommand deactivates a member of a group subscription and
// cancels the member's individual subscription.
type RemoveGroupMemberCommand struct {
	GroupSubscriptionID uuid.UUID
	MemberID            uuid.UUID
	Reason              string
	ActorID             uuid.UUID
}

// RemoveGroupMemberResult contains the result of removing a group member.
type RemoveGroupMemberResult struct {
	MemberCount     int
	Pricing         domain.GroupPricing
	DiscountApplied bool
}

// RemoveGroupMemberHandler handles the RemoveGroupMemberCommand.
type RemoveGroupMemberHandler struct {
	repo       domain.Repository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	locks      *locking.KeyedMutex
	reprice    bool
	now        func() time.Time
}

// NewRemoveGroupMemberHandler creates a new RemoveGroupMemberHandler.
func NewRemoveGroupMemberHandler(repo domain.Repository, outboxRepo outbox.Repository, uow sharedApplication.UnitOfWork, locks *locking.KeyedMutex, retroactiveRepricing bool) *RemoveGroupMemberHandler {
	return &RemoveGroupMemberHandler{repo: repo, outboxRepo: outboxRepo, uow: uow, locks: locks, reprice: retroactiveRepricing, now: time.Now}
}

// Handle executes the RemoveGroupMemberCommand.
func (h *RemoveGroupMemberHandler) Handle(ctx context.Context, cmd RemoveGroupMemberCommand) (*RemoveGroupMemberResult, error) {
	var result *RemoveGroupMemberResult

	err := withSubscription(ctx, h.repo, h.outboxRepo, h.uow, h.locks, cmd.GroupSubscriptionID, cmd.ActorID,
		func(txCtx context.Context, group *domain.Subscription) error {
			var memberSubID uuid.UUID
			for _, m := range group.Members() {
				if m.ID == cmd.MemberID && m.Active {
					memberSubID = m.SubscriptionID
					break
				}
			}

			now := h.now().UTC()
			if err := group.RemoveMember(cmd.MemberID, now); err != nil {
				return err
			}

			if memberSubID != uuid.Nil {
				memberSub, err := h.repo.FindByID(txCtx, memberSubID)
				if err != nil {
					return err
				}
				if memberSub != nil && !memberSub.State().IsTerminal() {
					if err := memberSub.Cancel(cmd.Reason, false, now); err != nil {
						return err
					}
					if err := h.repo.Save(txCtx, memberSub); err != nil {
						return err
					}
					if err := stageEvents(txCtx, h.outboxRepo, memberSub, cmd.ActorID); err != nil {
						return err
					}
				}
			}

			remaining, basePrices, err := activeMembers(txCtx, h.repo, group)
			if err != nil {
				return err
			}
			pricing, err := group.RepriceGroup(basePrices)
			if err != nil {
				return err
			}

			if h.reprice {
				if err := repriceMembers(txCtx, h.repo, h.outboxRepo, remaining, pricing.PerMember, cmd.ActorID); err != nil {
					return err
				}
			}

			result = &RemoveGroupMemberResult{
				MemberCount:     group.ActiveMemberCount(),
				Pricing:         pricing,
				DiscountApplied: pricing.DiscountApplied,
			}
			return nil
		})
	if err != nil {
		return nil, err
	}

	return result, nil
}
