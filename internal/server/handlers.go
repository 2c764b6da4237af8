package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/coachdesk/coachdesk/internal/catalog"
	engagementQueries "github.com/coachdesk/coachdesk/internal/engagement/application/queries"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/application/queries"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

func (s *Server) handleCreateSubscription(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID       uuid.UUID  `json:"customer_id"`
		TrainerID        *uuid.UUID `json:"trainer_id"`
		PlanID           string     `json:"plan_id"`
		StartDate        string     `json:"start_date"`
		RecurringBilling bool       `json:"recurring_billing"`
		WithTrial        bool       `json:"with_trial"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	result, err := s.container.CreateSubscriptionHandler.Handle(r.Context(), commands.CreateSubscriptionCommand{
		CustomerID:       req.CustomerID,
		TrainerID:        req.TrainerID,
		PlanID:           req.PlanID,
		StartDate:        startDate,
		RecurringBilling: req.RecurringBilling,
		WithTrial:        req.WithTrial,
		ActorID:          actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}

	dto, err := s.container.GetSubscriptionHandler.Handle(r.Context(), queries.GetSubscriptionQuery{SubscriptionID: id})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, dto)
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	query := queries.ListSubscriptionsQuery{
		State: r.URL.Query().Get("state"),
		Kind:  r.URL.Query().Get("kind"),
	}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "invalid customer_id")
			return
		}
		query.CustomerID = &id
	}
	if raw := r.URL.Query().Get("trainer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "invalid trainer_id")
			return
		}
		query.TrainerID = &id
	}

	dtos, err := s.container.ListSubscriptionsHandler.Handle(r.Context(), query)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, dtos)
}

func (s *Server) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Values map[string]string `json:"values"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Values) == 0 {
		s.respondError(w, r, http.StatusBadRequest, "values must be a non-empty object")
		return
	}

	err = s.container.UpdateMetadataHandler.Handle(r.Context(), commands.UpdateMetadataCommand{
		SubscriptionID: id,
		Values:         req.Values,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFreeze(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Start      string `json:"start"`
		End        string `json:"end"`
		Reason     string `json:"reason"`
		AutoResume bool   `json:"auto_resume"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "end must be YYYY-MM-DD")
		return
	}

	result, err := s.container.FreezeHandler.Handle(r.Context(), commands.FreezeSubscriptionCommand{
		SubscriptionID: id,
		Start:          start,
		End:            end,
		Reason:         req.Reason,
		AutoResume:     req.AutoResume,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleUnfreeze(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}

	result, err := s.container.UnfreezeHandler.Handle(r.Context(), commands.UnfreezeSubscriptionCommand{
		SubscriptionID: id,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Reason    string `json:"reason"`
		Immediate bool   `json:"immediate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.CancelHandler.Handle(r.Context(), commands.CancelSubscriptionCommand{
		SubscriptionID: id,
		Reason:         req.Reason,
		Immediate:      req.Immediate,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleConvertTrial(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		PlanID string `json:"plan_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.ConvertTrialHandler.Handle(r.Context(), commands.ConvertTrialCommand{
		SubscriptionID: id,
		PlanID:         req.PlanID,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleChangePlan(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		PlanID    string `json:"plan_id"`
		Immediate bool   `json:"immediate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.ChangePlanHandler.Handle(r.Context(), commands.ChangePlanCommand{
		SubscriptionID: id,
		NewPlanID:      req.PlanID,
		Immediate:      req.Immediate,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAdjustSessions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Delta        int    `json:"delta"`
		Reason       string `json:"reason"`
		EffectiveNow bool   `json:"effective_now"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.AdjustSessionsHandler.Handle(r.Context(), commands.AdjustSessionsCommand{
		SubscriptionID: id,
		Delta:          req.Delta,
		Reason:         req.Reason,
		EffectiveNow:   req.EffectiveNow,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleAddBonusSessions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Count  int    `json:"count"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.AddBonusSessionsHandler.Handle(r.Context(), commands.AddBonusSessionsCommand{
		SubscriptionID: id,
		Count:          req.Count,
		Reason:         req.Reason,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleTransferSessions(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		// Count transfers a specific number of sessions; omitted means
		// all available up to the configured cap.
		Count             *int   `json:"count"`
		DestinationPeriod string `json:"destination_period"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.TransferSessionsHandler.Handle(r.Context(), commands.TransferSessionsCommand{
		SubscriptionID:    id,
		Count:             req.Count,
		DestinationPeriod: req.DestinationPeriod,
		ActorID:           actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecordUsage(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.RecordUsageHandler.Handle(r.Context(), commands.RecordUsageCommand{
		SubscriptionID: id,
		Count:          req.Count,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleApplyDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}
	var req struct {
		Type       string  `json:"type"`
		Value      float64 `json:"value"`
		Reason     string  `json:"reason"`
		ValidFrom  string  `json:"valid_from"`
		ValidUntil string  `json:"valid_until"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	validFrom, err := time.Parse(dateLayout, req.ValidFrom)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "valid_from must be YYYY-MM-DD")
		return
	}
	var validUntil *time.Time
	if req.ValidUntil != "" {
		t, err := time.Parse(dateLayout, req.ValidUntil)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "valid_until must be YYYY-MM-DD")
			return
		}
		validUntil = &t
	}

	result, err := s.container.ApplyDiscountHandler.Handle(r.Context(), commands.ApplyDiscountCommand{
		SubscriptionID: id,
		Type:           domain.DiscountType(req.Type),
		Value:          req.Value,
		Reason:         req.Reason,
		ValidFrom:      validFrom,
		ValidUntil:     validUntil,
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveDiscount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}

	result, err := s.container.RemoveDiscountHandler.Handle(r.Context(), commands.RemoveDiscountCommand{
		SubscriptionID: id,
		Reason:         r.URL.Query().Get("reason"),
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}

	query := queries.GetHistoryQuery{
		SubscriptionID: id,
		Type:           r.URL.Query().Get("type"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			s.respondError(w, r, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		query.Limit = limit
	}

	entries, err := s.container.GetHistoryHandler.Handle(r.Context(), query)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleComputeEngagement(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}

	dto, err := s.container.ComputeEngagementHandler.Handle(r.Context(), engagementQueries.ComputeEngagementQuery{
		SubscriptionID: id,
		Today:          today(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, dto)
}

func (s *Server) handleComputeEngagementBatch(w http.ResponseWriter, r *http.Request) {
	query := engagementQueries.ComputeEngagementBatchQuery{
		State: r.URL.Query().Get("state"),
		Kind:  r.URL.Query().Get("kind"),
		Today: today(r),
	}
	if raw := r.URL.Query().Get("trainer_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.respondError(w, r, http.StatusBadRequest, "invalid trainer_id")
			return
		}
		query.TrainerID = &id
	}

	summary, err := s.container.ComputeEngagementBatchHandler.Handle(r.Context(), query)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OwnerCustomerID uuid.UUID  `json:"owner_customer_id"`
		TrainerID       *uuid.UUID `json:"trainer_id"`
		PlanID          string     `json:"plan_id"`
		StartDate       string     `json:"start_date"`
		DiscountType    string     `json:"discount_type"`
		DiscountValue   float64    `json:"discount_value"`
		MinMembers      int        `json:"min_members"`
		Members         []struct {
			CustomerID uuid.UUID `json:"customer_id"`
			Name       string    `json:"name"`
		} `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	startDate, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "start_date must be YYYY-MM-DD")
		return
	}

	members := make([]commands.GroupMemberSpec, 0, len(req.Members))
	for _, m := range req.Members {
		members = append(members, commands.GroupMemberSpec{CustomerID: m.CustomerID, Name: m.Name})
	}

	result, err := s.container.CreateGroupHandler.Handle(r.Context(), commands.CreateGroupCommand{
		OwnerCustomerID: req.OwnerCustomerID,
		TrainerID:       req.TrainerID,
		PlanID:          req.PlanID,
		StartDate:       startDate,
		DiscountType:    domain.DiscountType(req.DiscountType),
		DiscountValue:   req.DiscountValue,
		MinMembers:      req.MinMembers,
		Members:         members,
		ActorID:         actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusCreated, result)
}

func (s *Server) handleAddGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid group id")
		return
	}
	var req struct {
		CustomerID uuid.UUID `json:"customer_id"`
		Name       string    `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.container.AddGroupMemberHandler.Handle(r.Context(), commands.AddGroupMemberCommand{
		GroupSubscriptionID: groupID,
		CustomerID:          req.CustomerID,
		Name:                req.Name,
		ActorID:             actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRemoveGroupMember(w http.ResponseWriter, r *http.Request) {
	groupID, err := pathUUID(r, "groupID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid group id")
		return
	}
	memberID, err := pathUUID(r, "memberID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid member id")
		return
	}

	result, err := s.container.RemoveGroupMemberHandler.Handle(r.Context(), commands.RemoveGroupMemberCommand{
		GroupSubscriptionID: groupID,
		MemberID:            memberID,
		Reason:              r.URL.Query().Get("reason"),
		ActorID:             actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleApplyPendingTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "subscriptionID")
	if err != nil {
		s.respondError(w, r, http.StatusBadRequest, "invalid subscription id")
		return
	}

	result, err := s.container.ApplyTransfersHandler.Handle(r.Context(), commands.ApplyPendingTransfersCommand{
		SubscriptionID: id,
		Today:          today(r),
		ActorID:        actorID(r),
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) respondJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to marshal response", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func (s *Server) respondError(w http.ResponseWriter, r *http.Request, code int, message string) {
	if code >= http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", message)
	}
	s.respondJSON(w, code, map[string]string{"error": message})
}

// respondDomainError maps domain errors to HTTP status codes.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrSubscriptionNotFound),
		errors.Is(err, domain.ErrMemberNotFound),
		errors.Is(err, catalog.ErrPlanNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSpec),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, domain.ErrInvalidDiscount),
		errors.Is(err, domain.ErrInvalidAmount):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAlreadyTerminal),
		errors.Is(err, domain.ErrAlreadyFrozen),
		errors.Is(err, domain.ErrNotFrozen),
		errors.Is(err, domain.ErrNoActiveDiscount),
		errors.Is(err, domain.ErrInsufficientSessions),
		errors.Is(err, domain.ErrNoSessionsAvailable),
		errors.Is(err, domain.ErrNoSessionsOnPlan),
		errors.Is(err, domain.ErrTransferLimitExceeded),
		errors.Is(err, domain.ErrNotGroup):
		code = http.StatusConflict
	}
	s.respondError(w, r, code, err.Error())
}
