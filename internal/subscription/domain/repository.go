package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ListFilter narrows subscription listings.
type ListFilter struct {
	CustomerID *uuid.UUID
	TrainerID  *uuid.UUID
	State      *State
	Kind       *Kind
	Limit      int
	Offset     int
}

// Repository defines the interface for subscription persistence.
type Repository interface {
	// Save persists a subscription (create or update).
	Save(ctx context.Context, sub *Subscription) error

	// FindByID finds a subscription by its ID.
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// FindByCustomerID finds all subscriptions of a customer.
	FindByCustomerID(ctx context.Context, customerID uuid.UUID) ([]*Subscription, error)

	// FindByGroupID finds all subscriptions linked to a group.
	FindByGroupID(ctx context.Context, groupID uuid.UUID) ([]*Subscription, error)

	// List returns subscriptions matching the filter.
	List(ctx context.Context, filter ListFilter) ([]*Subscription, error)

	// FindFrozenDueForResume finds frozen subscriptions whose auto-resume
	// freeze window has ended by the given date.
	FindFrozenDueForResume(ctx context.Context, today time.Time) ([]*Subscription, error)

	// FindWithExpiringDiscounts finds subscriptions whose active discount
	// validity ends before the given date.
	FindWithExpiringDiscounts(ctx context.Context, today time.Time) ([]*Subscription, error)

	// FindDueForRenewal finds active subscriptions with recurring billing
	// whose next renewal date is on or before the given date.
	FindDueForRenewal(ctx context.Context, today time.Time) ([]*Subscription, error)

	// FindTrialsExpiring finds trial subscriptions whose trial window ends
	// on or before the given date.
	FindTrialsExpiring(ctx context.Context, today time.Time) ([]*Subscription, error)

	// Delete removes a subscription.
	Delete(ctx context.Context, id uuid.UUID) error
}
