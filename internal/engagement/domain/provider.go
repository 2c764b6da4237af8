package domain

import (
	"context"

	"github.com/google/uuid"
)

// HistoryProvider resolves the usage, attendance, and payment history the
// scorer consumes. Implementations read from booking and billing records;
// the scorer never sees where the numbers come from.
type HistoryProvider interface {
	// HistoryFor returns the trailing history window for one subscription.
	// A subscription with no recorded activity yields a zero History.
	HistoryFor(ctx context.Context, subscriptionID uuid.UUID) (History, error)
}
