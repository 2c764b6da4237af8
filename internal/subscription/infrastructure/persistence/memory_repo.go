// Package persistence provides the subscription repository implementations:
// in-memory for local mode and tests, Postgres for production, SQLite for
// single-node deployments.
package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// MemoryRepository is an in-memory implementation of domain.Repository.
// Aggregates are stored as snapshots so callers never share mutable state
// with the store.
type MemoryRepository struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]domain.Snapshot
}

// NewMemoryRepository creates an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{subs: make(map[uuid.UUID]domain.Snapshot)}
}

// Save persists a subscription.
func (r *MemoryRepository) Save(_ context.Context, sub *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[sub.ID()] = sub.Snapshot()
	return nil
}

// FindByID finds a subscription by ID. Returns nil when absent.
func (r *MemoryRepository) FindByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	snap, ok := r.subs[id]
	if !ok {
		return nil, nil
	}
	return domain.FromSnapshot(snap), nil
}

// FindByCustomerID finds all subscriptions of a customer.
func (r *MemoryRepository) FindByCustomerID(_ context.Context, customerID uuid.UUID) ([]*domain.Subscription, error) {
	return r.collect(func(snap domain.Snapshot) bool {
		return snap.CustomerID == customerID
	}), nil
}

// FindByGroupID finds all subscriptions linked to a group.
func (r *MemoryRepository) FindByGroupID(_ context.Context, groupID uuid.UUID) ([]*domain.Subscription, error) {
	return r.collect(func(snap domain.Snapshot) bool {
		return snap.GroupID != nil && *snap.GroupID == groupID
	}), nil
}

// List returns subscriptions matching the filter, ordered by creation time.
func (r *MemoryRepository) List(_ context.Context, filter domain.ListFilter) ([]*domain.Subscription, error) {
	matches := r.collect(func(snap domain.Snapshot) bool {
		if filter.CustomerID != nil && snap.CustomerID != *filter.CustomerID {
			return false
		}
		if filter.TrainerID != nil && (snap.TrainerID == nil || *snap.TrainerID != *filter.TrainerID) {
			return false
		}
		if filter.State != nil && snap.State != *filter.State {
			return false
		}
		if filter.Kind != nil && snap.Kind != *filter.Kind {
			return false
		}
		return true
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(matches) {
			return []*domain.Subscription{}, nil
		}
		matches = matches[filter.Offset:]
	}
	if filter.Limit > 0 && len(matches) > filter.Limit {
		matches = matches[:filter.Limit]
	}
	return matches, nil
}

// FindFrozenDueForResume finds frozen subscriptions whose auto-resume window
// ended by today.
func (r *MemoryRepository) FindFrozenDueForResume(_ context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.collect(func(snap domain.Snapshot) bool {
		return snap.State == domain.StateFrozen &&
			snap.Freeze != nil &&
			snap.Freeze.AutoResume &&
			!snap.Freeze.End.After(today)
	}), nil
}

// FindWithExpiringDiscounts finds subscriptions whose discount validity ends
// before today.
func (r *MemoryRepository) FindWithExpiringDiscounts(_ context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.collect(func(snap domain.Snapshot) bool {
		return snap.Discount != nil &&
			snap.Discount.ValidUntil != nil &&
			snap.Discount.ValidUntil.Before(today)
	}), nil
}

// FindDueForRenewal finds active recurring subscriptions due on or before
// today.
func (r *MemoryRepository) FindDueForRenewal(_ context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.collect(func(snap domain.Snapshot) bool {
		return snap.State == domain.StateActive &&
			snap.RecurringBilling &&
			!snap.NextRenewalDate.After(today)
	}), nil
}

// FindTrialsExpiring finds trials ending on or before today.
func (r *MemoryRepository) FindTrialsExpiring(_ context.Context, today time.Time) ([]*domain.Subscription, error) {
	return r.collect(func(snap domain.Snapshot) bool {
		return snap.State == domain.StateTrial &&
			snap.Trial != nil &&
			!snap.Trial.EndDate.After(today)
	}), nil
}

// Delete removes a subscription.
func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subs, id)
	return nil
}

func (r *MemoryRepository) collect(match func(domain.Snapshot) bool) []*domain.Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Subscription, 0)
	for _, snap := range r.subs {
		if match(snap) {
			out = append(out, domain.FromSnapshot(snap))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt().Before(out[j].CreatedAt())
	})
	return out
}
