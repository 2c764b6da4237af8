package domain

import (
	"time"

	"github.com/google/uuid"
)

// ChangeType classifies an audit entry.
type ChangeType string

const (
	ChangeCreation          ChangeType = "creation"
	ChangeStateChange       ChangeType = "state-change"
	ChangePlanChange        ChangeType = "plan-change"
	ChangePriceUpdate       ChangeType = "price-update"
	ChangeSessionAdjustment ChangeType = "session-adjustment"
	ChangeBonusSessions     ChangeType = "bonus-sessions"
	ChangeSessionTransfer   ChangeType = "session-transfer"
	ChangeFreeze            ChangeType = "freeze"
	ChangeDiscountApplied   ChangeType = "discount-applied"
	ChangeDiscountRemoved   ChangeType = "discount-removed"
	ChangeCancellation      ChangeType = "cancellation"
	ChangeOther             ChangeType = "other"
)

// historyRetentionLimit caps the audit trail per subscription. Once exceeded
// the oldest entries are dropped; the trim is not a semantic mutation.
const historyRetentionLimit = 100

// FieldDelta captures a single field-level before/after pair.
type FieldDelta struct {
	Field  string `json:"field"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// ChangeRecord is one immutable audit entry describing a single mutation.
// Records are appended in operation order and never rewritten.
type ChangeRecord struct {
	ID             uuid.UUID         `json:"id"`
	SubscriptionID uuid.UUID         `json:"subscription_id"`
	Type           ChangeType        `json:"type"`
	Timestamp      time.Time         `json:"timestamp"`
	Description    string            `json:"description"`
	Deltas         []FieldDelta      `json:"deltas,omitempty"`
	Reason         string            `json:"reason,omitempty"`
	ActorID        *uuid.UUID        `json:"actor_id,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

func newChangeRecord(subscriptionID uuid.UUID, changeType ChangeType, description, reason string) *ChangeRecord {
	return &ChangeRecord{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Type:           changeType,
		Timestamp:      time.Now().UTC(),
		Description:    description,
		Reason:         reason,
	}
}

func (r *ChangeRecord) withDelta(field, before, after string) *ChangeRecord {
	r.Deltas = append(r.Deltas, FieldDelta{Field: field, Before: before, After: after})
	return r
}

func (r *ChangeRecord) withMeta(key, value string) *ChangeRecord {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}
