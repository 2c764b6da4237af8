package domain

import (
	"maps"
	"slices"
	"time"

	sharedDomain "github.com/coachdesk/coachdesk/internal/shared/domain"
	"github.com/google/uuid"
)

// LedgerSnapshot is the persisted form of a SessionLedger.
type LedgerSnapshot struct {
	Included         int `json:"included"`
	Adjustment       int `json:"adjustment"`
	StagedAdjustment int `json:"staged_adjustment"`
	Bonus            int `json:"bonus"`
	Used             int `json:"used"`
	TransferredIn    int `json:"transferred_in"`
	TransferredOut   int `json:"transferred_out"`
}

// Snapshot is the persisted form of a Subscription. Repositories marshal it
// and rehydrate aggregates from it without replaying events.
type Snapshot struct {
	ID                 uuid.UUID              `json:"id"`
	CustomerID         uuid.UUID              `json:"customer_id"`
	TrainerID          *uuid.UUID             `json:"trainer_id,omitempty"`
	GroupID            *uuid.UUID             `json:"group_id,omitempty"`
	Kind               Kind                   `json:"kind"`
	PlanID             string                 `json:"plan_id"`
	Frequency          BillingFrequency       `json:"frequency"`
	Price              float64                `json:"price"`
	OriginalPrice      *float64               `json:"original_price,omitempty"`
	Discount           *Discount              `json:"discount,omitempty"`
	DiscountHistory    []DiscountHistoryEntry `json:"discount_history,omitempty"`
	State              State                  `json:"state"`
	StartDate          time.Time              `json:"start_date"`
	ExpirationDate     time.Time              `json:"expiration_date"`
	NextRenewalDate    time.Time              `json:"next_renewal_date"`
	CancellationReason string                 `json:"cancellation_reason,omitempty"`
	CancellationDate   *time.Time             `json:"cancellation_date,omitempty"`
	RecurringBilling   bool                   `json:"recurring_billing"`
	Ledger             *LedgerSnapshot        `json:"ledger,omitempty"`
	Transfers          []*SessionTransfer     `json:"transfers,omitempty"`
	Freeze             *FreezePeriod          `json:"freeze,omitempty"`
	Trial              *TrialTerms            `json:"trial,omitempty"`
	Group              *GroupTerms            `json:"group,omitempty"`
	Members            []*GroupMember         `json:"members,omitempty"`
	PendingPlan        *PlanChange            `json:"pending_plan,omitempty"`
	Metadata           map[string]string      `json:"metadata,omitempty"`
	History            []*ChangeRecord        `json:"history,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// Snapshot captures the full aggregate state for persistence. All pointer-
// and reference-backed fields are deep-copied so the snapshot never shares
// mutable state with the aggregate; FromSnapshot copies again on the way
// back, so in-memory stores hold no aliases either.
func (s *Subscription) Snapshot() Snapshot {
	snap := Snapshot{
		ID:                 s.ID(),
		CustomerID:         s.customerID,
		TrainerID:          clonePtr(s.trainerID),
		GroupID:            clonePtr(s.groupID),
		Kind:               s.kind,
		PlanID:             s.planID,
		Frequency:          s.frequency,
		Price:              s.price,
		OriginalPrice:      clonePtr(s.originalPrice),
		Discount:           clonePtr(s.discount),
		DiscountHistory:    slices.Clone(s.discountHistory),
		State:              s.state,
		StartDate:          s.startDate,
		ExpirationDate:     s.expirationDate,
		NextRenewalDate:    s.nextRenewalDate,
		CancellationReason: s.cancellationReason,
		CancellationDate:   clonePtr(s.cancellationDate),
		RecurringBilling:   s.recurringBilling,
		Transfers:          clonePtrSlice(s.transfers),
		Freeze:             clonePtr(s.freeze),
		Trial:              clonePtr(s.trial),
		Group:              clonePtr(s.group),
		Members:            clonePtrSlice(s.members),
		PendingPlan:        clonePtr(s.pendingPlan),
		Metadata:           maps.Clone(s.metadata),
		History:            cloneRecords(s.history),
		CreatedAt:          s.CreatedAt(),
		UpdatedAt:          s.UpdatedAt(),
	}
	if s.ledger != nil {
		snap.Ledger = &LedgerSnapshot{
			Included:         s.ledger.included,
			Adjustment:       s.ledger.adjustment,
			StagedAdjustment: s.ledger.stagedAdjustment,
			Bonus:            s.ledger.bonus,
			Used:             s.ledger.used,
			TransferredIn:    s.ledger.transferredIn,
			TransferredOut:   s.ledger.transferredOut,
		}
	}
	return snap
}

// FromSnapshot rehydrates a subscription from its persisted form.
func FromSnapshot(snap Snapshot) *Subscription {
	s := &Subscription{
		BaseAggregateRoot: sharedDomain.RehydrateBaseAggregateRoot(
			sharedDomain.RehydrateBaseEntity(snap.ID, snap.CreatedAt, snap.UpdatedAt)),
		customerID:         snap.CustomerID,
		trainerID:          clonePtr(snap.TrainerID),
		groupID:            clonePtr(snap.GroupID),
		kind:               snap.Kind,
		planID:             snap.PlanID,
		frequency:          snap.Frequency,
		price:              snap.Price,
		originalPrice:      clonePtr(snap.OriginalPrice),
		discount:           clonePtr(snap.Discount),
		discountHistory:    slices.Clone(snap.DiscountHistory),
		state:              snap.State,
		startDate:          snap.StartDate,
		expirationDate:     snap.ExpirationDate,
		nextRenewalDate:    snap.NextRenewalDate,
		cancellationReason: snap.CancellationReason,
		cancellationDate:   clonePtr(snap.CancellationDate),
		recurringBilling:   snap.RecurringBilling,
		transfers:          clonePtrSlice(snap.Transfers),
		freeze:             clonePtr(snap.Freeze),
		trial:              clonePtr(snap.Trial),
		group:              clonePtr(snap.Group),
		members:            clonePtrSlice(snap.Members),
		pendingPlan:        clonePtr(snap.PendingPlan),
		metadata:           maps.Clone(snap.Metadata),
		history:            cloneRecords(snap.History),
	}
	if s.metadata == nil {
		s.metadata = make(map[string]string)
	}
	if snap.Ledger != nil {
		s.ledger = RehydrateSessionLedger(
			snap.Ledger.Included,
			snap.Ledger.Adjustment,
			snap.Ledger.StagedAdjustment,
			snap.Ledger.Bonus,
			snap.Ledger.Used,
			snap.Ledger.TransferredIn,
			snap.Ledger.TransferredOut,
		)
	}
	return s
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func clonePtrSlice[T any](s []*T) []*T {
	if s == nil {
		return nil
	}
	out := make([]*T, len(s))
	for i, p := range s {
		out[i] = clonePtr(p)
	}
	return out
}

func cloneRecords(rs []*ChangeRecord) []*ChangeRecord {
	if rs == nil {
		return nil
	}
	out := make([]*ChangeRecord, len(rs))
	for i, r := range rs {
		c := *r
		c.Deltas = slices.Clone(r.Deltas)
		c.Metadata = maps.Clone(r.Metadata)
		out[i] = &c
	}
	return out
}
