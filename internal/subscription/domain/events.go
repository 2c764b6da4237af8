package domain

import (
	"time"

	sharedDomain "github.com/coachdesk/coachdesk/internal/shared/domain"
	"github.com/google/uuid"
)

const aggregateType = "Subscription"

// SubscriptionCreated is emitted when a subscription is created.
type SubscriptionCreated struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Kind           string    `json:"kind"`
	PlanID         string    `json:"plan_id"`
	State          string    `json:"state"`
	Price          float64   `json:"price"`
}

// NewSubscriptionCreated creates a SubscriptionCreated event.
func NewSubscriptionCreated(s *Subscription) *SubscriptionCreated {
	return &SubscriptionCreated{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.created"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		Kind:           string(s.Kind()),
		PlanID:         s.PlanID(),
		State:          string(s.State()),
		Price:          s.Price(),
	}
}

// TrialConverted is emitted when a trial becomes a regular subscription.
type TrialConverted struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	PlanID         string    `json:"plan_id"`
	Price          float64   `json:"price"`
}

// NewTrialConverted creates a TrialConverted event.
func NewTrialConverted(s *Subscription) *TrialConverted {
	return &TrialConverted{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.trial_converted"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		PlanID:         s.PlanID(),
		Price:          s.Price(),
	}
}

// SubscriptionFrozen is emitted when a subscription is paused.
type SubscriptionFrozen struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Days           int       `json:"days"`
	ExpirationDate time.Time `json:"expiration_date"`
}

// NewSubscriptionFrozen creates a SubscriptionFrozen event.
func NewSubscriptionFrozen(s *Subscription, days int) *SubscriptionFrozen {
	return &SubscriptionFrozen{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.frozen"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		Days:           days,
		ExpirationDate: s.ExpirationDate(),
	}
}

// SubscriptionResumed is emitted when a freeze ends.
type SubscriptionResumed struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
}

// NewSubscriptionResumed creates a SubscriptionResumed event.
func NewSubscriptionResumed(s *Subscription) *SubscriptionResumed {
	return &SubscriptionResumed{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.resumed"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
	}
}

// SubscriptionCancelled is emitted when a subscription is cancelled.
type SubscriptionCancelled struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Reason         string    `json:"reason"`
	Immediate      bool      `json:"immediate"`
	UnusedSessions int       `json:"unused_sessions"`
}

// NewSubscriptionCancelled creates a SubscriptionCancelled event.
func NewSubscriptionCancelled(s *Subscription, reason string, immediate bool) *SubscriptionCancelled {
	return &SubscriptionCancelled{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.cancelled"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		Reason:         reason,
		Immediate:      immediate,
		UnusedSessions: s.AvailableSessions(),
	}
}

// SubscriptionExpired is emitted when a subscription lapses.
type SubscriptionExpired struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Reason         string    `json:"reason"`
}

// NewSubscriptionExpired creates a SubscriptionExpired event.
func NewSubscriptionExpired(s *Subscription, reason string) *SubscriptionExpired {
	return &SubscriptionExpired{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.expired"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		Reason:         reason,
	}
}

// PlanChanged is emitted when an immediate plan change takes effect.
type PlanChanged struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	PreviousPlanID string    `json:"previous_plan_id"`
	PlanID         string    `json:"plan_id"`
	Price          float64   `json:"price"`
}

// NewPlanChanged creates a PlanChanged event.
func NewPlanChanged(s *Subscription, previousPlanID string) *PlanChanged {
	return &PlanChanged{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.plan_changed"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		PreviousPlanID: previousPlanID,
		PlanID:         s.PlanID(),
		Price:          s.Price(),
	}
}

// SessionsTransferred is emitted when unused sessions move to a later period.
type SessionsTransferred struct {
	sharedDomain.BaseEvent
	SubscriptionID    uuid.UUID `json:"subscription_id"`
	CustomerID        uuid.UUID `json:"customer_id"`
	TransferID        uuid.UUID `json:"transfer_id"`
	Sessions          int       `json:"sessions"`
	SourcePeriod      string    `json:"source_period"`
	DestinationPeriod string    `json:"destination_period"`
}

// NewSessionsTransferred creates a SessionsTransferred event.
func NewSessionsTransferred(s *Subscription, t *SessionTransfer) *SessionsTransferred {
	return &SessionsTransferred{
		BaseEvent:         sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.sessions_transferred"),
		SubscriptionID:    s.ID(),
		CustomerID:        s.CustomerID(),
		TransferID:        t.ID,
		Sessions:          t.Sessions,
		SourcePeriod:      t.SourcePeriod,
		DestinationPeriod: t.DestinationPeriod,
	}
}

// DiscountApplied is emitted when a discount takes effect.
type DiscountApplied struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	DiscountType   string    `json:"discount_type"`
	DiscountValue  float64   `json:"discount_value"`
	Price          float64   `json:"price"`
}

// NewDiscountApplied creates a DiscountApplied event.
func NewDiscountApplied(s *Subscription, d Discount) *DiscountApplied {
	return &DiscountApplied{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.discount_applied"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		DiscountType:   string(d.Type),
		DiscountValue:  d.Value,
		Price:          s.Price(),
	}
}

// DiscountRemoved is emitted when a discount ends and the price is restored.
type DiscountRemoved struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	Reason         string    `json:"reason"`
	Price          float64   `json:"price"`
}

// NewDiscountRemoved creates a DiscountRemoved event.
func NewDiscountRemoved(s *Subscription, reason string) *DiscountRemoved {
	return &DiscountRemoved{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.discount_removed"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		Reason:         reason,
		Price:          s.Price(),
	}
}

// SubscriptionRenewed is emitted when a new billing cycle begins.
type SubscriptionRenewed struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	RenewedAt      time.Time `json:"renewed_at"`
	ExpirationDate time.Time `json:"expiration_date"`
	Price          float64   `json:"price"`
}

// NewSubscriptionRenewed creates a SubscriptionRenewed event.
func NewSubscriptionRenewed(s *Subscription, renewedAt time.Time) *SubscriptionRenewed {
	return &SubscriptionRenewed{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.subscription.renewed"),
		SubscriptionID: s.ID(),
		CustomerID:     s.CustomerID(),
		RenewedAt:      renewedAt,
		ExpirationDate: s.ExpirationDate(),
		Price:          s.Price(),
	}
}

// GroupMemberAdded is emitted when a member joins a group subscription.
type GroupMemberAdded struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	MemberID       uuid.UUID `json:"member_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	MemberCount    int       `json:"member_count"`
}

// NewGroupMemberAdded creates a GroupMemberAdded event.
func NewGroupMemberAdded(s *Subscription, m *GroupMember) *GroupMemberAdded {
	return &GroupMemberAdded{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.group.member_added"),
		SubscriptionID: s.ID(),
		MemberID:       m.ID,
		CustomerID:     m.CustomerID,
		MemberCount:    s.ActiveMemberCount(),
	}
}

// GroupMemberRemoved is emitted when a member leaves a group subscription.
type GroupMemberRemoved struct {
	sharedDomain.BaseEvent
	SubscriptionID uuid.UUID `json:"subscription_id"`
	MemberID       uuid.UUID `json:"member_id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	MemberCount    int       `json:"member_count"`
}

// NewGroupMemberRemoved creates a GroupMemberRemoved event.
func NewGroupMemberRemoved(s *Subscription, m *GroupMember) *GroupMemberRemoved {
	return &GroupMemberRemoved{
		BaseEvent:      sharedDomain.NewBaseEvent(s.ID(), aggregateType, "subscriptions.group.member_removed"),
		SubscriptionID: s.ID(),
		MemberID:       m.ID,
		CustomerID:     m.CustomerID,
		MemberCount:    s.ActiveMemberCount(),
	}
}
