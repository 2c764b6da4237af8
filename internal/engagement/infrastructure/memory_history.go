// Package infrastructure provides HistoryProvider implementations for the
// engagement context.
package infrastructure

import (
	"context"
	"sync"
	"time"

	"github.com/coachdesk/coachdesk/internal/engagement/domain"
	"github.com/google/uuid"
)

// MemoryHistoryStore is an in-memory HistoryProvider fed by explicit record
// calls. Used in local mode, where session and payment events arrive through
// the API rather than from a booking system.
type MemoryHistoryStore struct {
	mu        sync.RWMutex
	histories map[uuid.UUID]domain.History
}

// NewMemoryHistoryStore creates an empty MemoryHistoryStore.
func NewMemoryHistoryStore() *MemoryHistoryStore {
	return &MemoryHistoryStore{histories: make(map[uuid.UUID]domain.History)}
}

// HistoryFor returns the recorded history, or a zero History when the
// subscription has none.
func (s *MemoryHistoryStore) HistoryFor(_ context.Context, subscriptionID uuid.UUID) (domain.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.histories[subscriptionID], nil
}

// Put replaces the history window for a subscription.
func (s *MemoryHistoryStore) Put(subscriptionID uuid.UUID, h domain.History) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[subscriptionID] = h
}

// RecordSession adds one attended session at the given time.
func (s *MemoryHistoryStore) RecordSession(subscriptionID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.histories[subscriptionID]
	h.ScheduledSessions++
	h.AttendedSessions++
	h.UsedSessions++
	if h.LastSessionAt == nil || at.After(*h.LastSessionAt) {
		t := at
		h.LastSessionAt = &t
	}
	s.histories[subscriptionID] = h
}

// RecordPayment adds one payment outcome.
func (s *MemoryHistoryStore) RecordPayment(subscriptionID uuid.UUID, onTime bool, failed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h := s.histories[subscriptionID]
	switch {
	case failed:
		h.FailedPayments++
	case onTime:
		h.OnTimePayments++
	default:
		h.LatePayments++
	}
	s.histories[subscriptionID] = h
}
