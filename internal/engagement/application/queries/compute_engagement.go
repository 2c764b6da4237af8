// Package queries contains the read-side handlers of the engagement
// context. Scoring is derived on demand and never persisted.
package queries

import (
	"context"
	"time"

	engagementDomain "github.com/coachdesk/coachdesk/internal/engagement/domain"
	subscriptionDomain "github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// ComputeEngagementQuery scores one subscription.
type ComputeEngagementQuery struct {
	SubscriptionID uuid.UUID
	Today          time.Time
}

// EngagementDTO is the scored read model for one subscription.
type EngagementDTO struct {
	SubscriptionID uuid.UUID               `json:"subscription_id"`
	CustomerID     uuid.UUID               `json:"customer_id"`
	State          string                  `json:"state"`
	Metric         engagementDomain.Metric `json:"metric"`
}

// ComputeEngagementHandler handles the ComputeEngagementQuery.
type ComputeEngagementHandler struct {
	subs    subscriptionDomain.Repository
	history engagementDomain.HistoryProvider
}

// NewComputeEngagementHandler creates a new ComputeEngagementHandler.
func NewComputeEngagementHandler(subs subscriptionDomain.Repository, history engagementDomain.HistoryProvider) *ComputeEngagementHandler {
	return &ComputeEngagementHandler{subs: subs, history: history}
}

// Handle executes the ComputeEngagementQuery.
func (h *ComputeEngagementHandler) Handle(ctx context.Context, query ComputeEngagementQuery) (*EngagementDTO, error) {
	sub, err := h.subs.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, subscriptionDomain.ErrSubscriptionNotFound
	}

	hist, err := h.history.HistoryFor(ctx, sub.ID())
	if err != nil {
		return nil, err
	}
	fillFromLedger(&hist, sub)

	return &EngagementDTO{
		SubscriptionID: sub.ID(),
		CustomerID:     sub.CustomerID(),
		State:          string(sub.State()),
		Metric:         engagementDomain.Compute(hist, query.Today),
	}, nil
}

// fillFromLedger backfills session counts from the subscription's own ledger
// when the history provider has no booking data for it.
func fillFromLedger(hist *engagementDomain.History, sub *subscriptionDomain.Subscription) {
	if hist.IncludedSessions > 0 || sub.Ledger() == nil {
		return
	}
	hist.IncludedSessions = sub.Ledger().Included()
	if hist.UsedSessions == 0 {
		hist.UsedSessions = sub.Ledger().Used()
	}
}
