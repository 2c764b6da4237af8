package queries

import (
	"context"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// GetHistoryQuery contains the parameters for reading a subscription's audit
// trail.
type GetHistoryQuery struct {
	SubscriptionID uuid.UUID
	// Type filters to one change type when set.
	Type string
	// Limit returns only the most recent N entries when positive.
	Limit int
}

// GetHistoryHandler handles the GetHistoryQuery.
type GetHistoryHandler struct {
	repo domain.Repository
}

// NewGetHistoryHandler creates a new GetHistoryHandler.
func NewGetHistoryHandler(repo domain.Repository) *GetHistoryHandler {
	return &GetHistoryHandler{repo: repo}
}

// Handle executes the GetHistoryQuery. Entries are returned oldest first.
func (h *GetHistoryHandler) Handle(ctx context.Context, query GetHistoryQuery) ([]*domain.ChangeRecord, error) {
	sub, err := h.repo.FindByID(ctx, query.SubscriptionID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubscriptionNotFound
	}

	records := sub.History()
	if query.Type != "" {
		filtered := make([]*domain.ChangeRecord, 0, len(records))
		for _, r := range records {
			if r.Type == domain.ChangeType(query.Type) {
				filtered = append(filtered, r)
			}
		}
		records = filtered
	}
	if query.Limit > 0 && len(records) > query.Limit {
		records = records[len(records)-query.Limit:]
	}
	return records, nil
}
