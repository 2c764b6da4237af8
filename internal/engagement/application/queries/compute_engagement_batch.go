package queries

import (
	"context"
	"time"

	engagementDomain "github.com/coachdesk/coachdesk/internal/engagement/domain"
	subscriptionDomain "github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// ComputeEngagementBatchQuery scores all subscriptions matching the filter.
type ComputeEngagementBatchQuery struct {
	CustomerID *uuid.UUID
	TrainerID  *uuid.UUID
	State      string
	Kind       string
	Today      time.Time
}

// EngagementSummary aggregates one batch scoring run for operator triage.
type EngagementSummary struct {
	Total        int              `json:"total"`
	AverageScore float64          `json:"average_score"`
	ByRisk       map[string]int   `json:"by_risk"`
	Items        []*EngagementDTO `json:"items"`
}

// ComputeEngagementBatchHandler handles the ComputeEngagementBatchQuery.
type ComputeEngagementBatchHandler struct {
	subs    subscriptionDomain.Repository
	history engagementDomain.HistoryProvider
}

// NewComputeEngagementBatchHandler creates a new ComputeEngagementBatchHandler.
func NewComputeEngagementBatchHandler(subs subscriptionDomain.Repository, history engagementDomain.HistoryProvider) *ComputeEngagementBatchHandler {
	return &ComputeEngagementBatchHandler{subs: subs, history: history}
}

// Handle executes the ComputeEngagementBatchQuery.
func (h *ComputeEngagementBatchHandler) Handle(ctx context.Context, query ComputeEngagementBatchQuery) (*EngagementSummary, error) {
	filter := subscriptionDomain.ListFilter{
		CustomerID: query.CustomerID,
		TrainerID:  query.TrainerID,
	}
	if query.State != "" {
		state := subscriptionDomain.State(query.State)
		filter.State = &state
	}
	if query.Kind != "" {
		kind := subscriptionDomain.Kind(query.Kind)
		filter.Kind = &kind
	}

	subs, err := h.subs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	summary := &EngagementSummary{
		ByRisk: map[string]int{
			string(engagementDomain.RiskLow):      0,
			string(engagementDomain.RiskMedium):   0,
			string(engagementDomain.RiskHigh):     0,
			string(engagementDomain.RiskCritical): 0,
		},
		Items: make([]*EngagementDTO, 0, len(subs)),
	}

	scoreSum := 0
	for _, sub := range subs {
		hist, err := h.history.HistoryFor(ctx, sub.ID())
		if err != nil {
			return nil, err
		}
		fillFromLedger(&hist, sub)
		metric := engagementDomain.Compute(hist, query.Today)

		summary.Items = append(summary.Items, &EngagementDTO{
			SubscriptionID: sub.ID(),
			CustomerID:     sub.CustomerID(),
			State:          string(sub.State()),
			Metric:         metric,
		})
		summary.ByRisk[string(metric.RiskLevel)]++
		scoreSum += metric.CompositeScore
	}

	summary.Total = len(summary.Items)
	if summary.Total > 0 {
		summary.AverageScore = float64(scoreSum) / float64(summary.Total)
	}
	return summary, nil
}
