package notification

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReminderLog deduplicates reminders. Sweeps run repeatedly and must not
// send the same reminder for the same renewal twice.
type ReminderLog interface {
	// MarkSent records a reminder key and reports whether it was new. A
	// false return means the reminder was already sent within the TTL.
	MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// ReminderKey builds the dedupe key for one subscription and period.
func ReminderKey(kind Kind, subscriptionID uuid.UUID, period string) string {
	return fmt.Sprintf("reminder:%s:%s:%s", kind, subscriptionID, period)
}

// RedisReminderLog stores reminder keys in Redis with a TTL.
type RedisReminderLog struct {
	client *redis.Client
}

// NewRedisReminderLog creates a RedisReminderLog.
func NewRedisReminderLog(client *redis.Client) *RedisReminderLog {
	return &RedisReminderLog{client: client}
}

// MarkSent sets the key if absent.
func (l *RedisReminderLog) MarkSent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.client.SetNX(ctx, key, "1", ttl).Result()
}

// MemoryReminderLog keeps reminder keys in memory. Entries expire lazily on
// lookup.
type MemoryReminderLog struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryReminderLog creates an empty MemoryReminderLog.
func NewMemoryReminderLog() *MemoryReminderLog {
	return &MemoryReminderLog{entries: make(map[string]time.Time)}
}

// MarkSent records the key if absent or expired.
func (l *MemoryReminderLog) MarkSent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if expiry, ok := l.entries[key]; ok && now.Before(expiry) {
		return false, nil
	}
	l.entries[key] = now.Add(ttl)
	return true, nil
}
