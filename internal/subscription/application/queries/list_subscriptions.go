package queries

import (
	"context"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// ListSubscriptionsQuery contains the parameters for listing subscriptions.
type ListSubscriptionsQuery struct {
	CustomerID *uuid.UUID
	TrainerID  *uuid.UUID
	State      string
	Kind       string
	Limit      int
	Offset     int
}

// ListSubscriptionsHandler handles the ListSubscriptionsQuery.
type ListSubscriptionsHandler struct {
	repo domain.Repository
}

// NewListSubscriptionsHandler creates a new ListSubscriptionsHandler.
func NewListSubscriptionsHandler(repo domain.Repository) *ListSubscriptionsHandler {
	return &ListSubscriptionsHandler{repo: repo}
}

// Handle executes the ListSubscriptionsQuery.
func (h *ListSubscriptionsHandler) Handle(ctx context.Context, query ListSubscriptionsQuery) ([]*SubscriptionDTO, error) {
	filter := domain.ListFilter{
		CustomerID: query.CustomerID,
		TrainerID:  query.TrainerID,
		Limit:      query.Limit,
		Offset:     query.Offset,
	}
	if query.State != "" {
		state := domain.State(query.State)
		filter.State = &state
	}
	if query.Kind != "" {
		kind := domain.Kind(query.Kind)
		filter.Kind = &kind
	}

	subs, err := h.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	dtos := make([]*SubscriptionDTO, 0, len(subs))
	for _, sub := range subs {
		dtos = append(dtos, toDTO(sub))
	}
	return dtos, nil
}
