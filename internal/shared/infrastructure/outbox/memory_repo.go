package outbox

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepository is an in-memory outbox for local mode and tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Message
}

// NewMemoryRepository creates an empty in-memory outbox.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]*Message)}
}

// Save stores a new outbox message.
func (r *MemoryRepository) Save(ctx context.Context, msg *Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.save(msg)
	return nil
}

// SaveBatch stores multiple outbox messages.
func (r *MemoryRepository) SaveBatch(ctx context.Context, msgs []*Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, msg := range msgs {
		r.save(msg)
	}
	return nil
}

func (r *MemoryRepository) save(msg *Message) {
	r.nextID++
	msg.ID = r.nextID
	stored := *msg
	r.byID[msg.ID] = &stored
}

// GetUnpublished retrieves unpublished messages ordered by creation time.
func (r *MemoryRepository) GetUnpublished(ctx context.Context, limit int) ([]*Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	out := make([]*Message, 0)
	for _, msg := range r.byID {
		if msg.PublishedAt != nil || msg.DeadLetteredAt != nil {
			continue
		}
		if msg.NextRetryAt != nil && msg.NextRetryAt.After(now) {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// MarkPublished marks a message as published.
func (r *MemoryRepository) MarkPublished(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.byID[id]; ok {
		now := time.Now()
		msg.PublishedAt = &now
	}
	return nil
}

// MarkFailed records a publish failure and schedules a retry.
func (r *MemoryRepository) MarkFailed(ctx context.Context, id int64, errMsg string, nextRetryAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.byID[id]; ok {
		msg.RetryCount++
		msg.LastError = &errMsg
		msg.NextRetryAt = &nextRetryAt
	}
	return nil
}

// MarkDead marks a message as dead-lettered.
func (r *MemoryRepository) MarkDead(ctx context.Context, id int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if msg, ok := r.byID[id]; ok {
		now := time.Now()
		msg.DeadLetteredAt = &now
		msg.LastError = &reason
	}
	return nil
}

// DeleteOld removes published messages older than the retention period.
func (r *MemoryRepository) DeleteOld(ctx context.Context, olderThanDays int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -olderThanDays)
	var deleted int64
	for id, msg := range r.byID {
		if msg.PublishedAt != nil && msg.PublishedAt.Before(cutoff) {
			delete(r.byID, id)
			deleted++
		}
	}
	return deleted, nil
}
