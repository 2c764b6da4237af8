// Package queries contains the read-side handlers of the subscription
// context. Queries return DTOs and never mutate aggregates.
package queries

import (
	"context"
	"time"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// SubscriptionDTO is the read model of a subscription.
type SubscriptionDTO struct {
	ID                 uuid.UUID         `json:"id"`
	CustomerID         uuid.UUID         `json:"customer_id"`
	TrainerID          *uuid.UUID        `json:"trainer_id,omitempty"`
	GroupID            *uuid.UUID        `json:"group_id,omitempty"`
	Kind               string            `json:"kind"`
	PlanID             string            `json:"plan_id"`
	Frequency          string            `json:"frequency"`
	State              string            `json:"state"`
	Price              float64           `json:"price"`
	OriginalPrice      *float64          `json:"original_price,omitempty"`
	DiscountActive     bool              `json:"discount_active"`
	StartDate          time.Time         `json:"start_date"`
	ExpirationDate     time.Time         `json:"expiration_date"`
	NextRenewalDate    time.Time         `json:"next_renewal_date"`
	RecurringBilling   bool              `json:"recurring_billing"`
	IsTrial            bool              `json:"is_trial"`
	IsGroup            bool              `json:"is_group"`
	MemberCount        int               `json:"member_count,omitempty"`
	AvailableSessions  int               `json:"available_sessions"`
	UsedSessions       int               `json:"used_sessions"`
	IncludedSessions   int               `json:"included_sessions"`
	PendingTransfers   int               `json:"pending_transfers"`
	FrozenUntil        *time.Time        `json:"frozen_until,omitempty"`
	CancellationReason string            `json:"cancellation_reason,omitempty"`
	Metadata           map[string]string `json:"metadata,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func toDTO(sub *domain.Subscription) *SubscriptionDTO {
	dto := &SubscriptionDTO{
		ID:                 sub.ID(),
		CustomerID:         sub.CustomerID(),
		TrainerID:          sub.TrainerID(),
		GroupID:            sub.GroupID(),
		Kind:               string(sub.Kind()),
		PlanID:             sub.PlanID(),
		Frequency:          string(sub.Frequency()),
		State:              string(sub.State()),
		Price:              sub.Price(),
		OriginalPrice:      sub.OriginalPrice(),
		DiscountActive:     sub.Discount() != nil,
		StartDate:          sub.StartDate(),
		ExpirationDate:     sub.ExpirationDate(),
		NextRenewalDate:    sub.NextRenewalDate(),
		RecurringBilling:   sub.RecurringBilling(),
		IsTrial:            sub.IsTrial(),
		IsGroup:            sub.IsGroup(),
		AvailableSessions:  sub.AvailableSessions(),
		PendingTransfers:   len(sub.PendingTransfers()),
		CancellationReason: sub.CancellationReason(),
		Metadata:           sub.Metadata(),
		CreatedAt:          sub.CreatedAt(),
		UpdatedAt:          sub.UpdatedAt(),
	}
	if sub.IsGroup() {
		dto.MemberCount = sub.ActiveMemberCount()
	}
	if ledger := sub.Ledger(); ledger != nil {
		dto.UsedSessions = ledger.Used()
		dto.IncludedSessions = ledger.Included()
	}
	if freeze := sub.Freeze(); freeze != nil {
		until := freeze.End
		dto.FrozenUntil = &until
	}
	return dto
}

// GetSubscriptionQuery contains the parameters for getting one subscription.
type GetSubscriptionQuery struct {
	SubscriptionID uuid.UUID
}

// GetSubscriptionHandler handles the GetSubscriptionQuery.
type GetSubscriptionHandler struct {
	repo domain.Repository
}

// NewGetSubscriptionHandler creates a new GetSubscriptionHandler.
func NewGetSubscriptionHandler(repo domain.Repository) *GetSubscriptionHandler {
	return &GetSubscriptionHandler{repo: repo}
}

// Handle executes the GetSubscriptionQuery.
func (h *GetSubscriptionHandler) Handle(ctx context.Context, query GetSubscriptionQuery) (*SubscriptionDTO, error) {
	sub, err := h.repo.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}
	return toDTO(sub), nil
}
