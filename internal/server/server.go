// Package server exposes the subscription engine over HTTP. Handlers parse
// requests, call the application handlers, and map domain errors to status
// codes; no business logic lives here.
package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/coachdesk/coachdesk/internal/app"
	"github.com/coachdesk/coachdesk/pkg/observability"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

// Server is the HTTP API server.
type Server struct {
	container *app.Container
	logger    *slog.Logger
	router    chi.Router
}

// New creates a Server with all routes registered.
func New(container *app.Container, logger *slog.Logger) *Server {
	s := &Server{container: container, logger: logger}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestContext)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/subscriptions", func(r chi.Router) {
		r.Post("/", s.handleCreateSubscription)
		r.Get("/", s.handleListSubscriptions)

		r.Route("/{subscriptionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSubscription)
			r.Patch("/metadata", s.handleUpdateMetadata)
			r.Post("/freeze", s.handleFreeze)
			r.Post("/unfreeze", s.handleUnfreeze)
			r.Post("/cancel", s.handleCancel)
			r.Post("/convert", s.handleConvertTrial)
			r.Post("/plan", s.handleChangePlan)
			r.Post("/sessions/adjust", s.handleAdjustSessions)
			r.Post("/sessions/bonus", s.handleAddBonusSessions)
			r.Post("/sessions/transfer", s.handleTransferSessions)
			r.Post("/sessions/transfer/apply", s.handleApplyPendingTransfers)
			r.Post("/sessions/usage", s.handleRecordUsage)
			r.Post("/discount", s.handleApplyDiscount)
			r.Delete("/discount", s.handleRemoveDiscount)
			r.Get("/history", s.handleGetHistory)
			r.Get("/engagement", s.handleComputeEngagement)
		})
	})

	r.Get("/engagement", s.handleComputeEngagementBatch)

	r.Route("/groups", func(r chi.Router) {
		r.Post("/", s.handleCreateGroup)
		r.Post("/{groupID}/members", s.handleAddGroupMember)
		r.Delete("/{groupID}/members/{memberID}", s.handleRemoveGroupMember)
	})

	return r
}

// requestContext propagates the chi request ID into the logging context.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			r = r.WithContext(observability.WithRequestID(r.Context(), reqID))
		}
		next.ServeHTTP(w, r)
	})
}

// actorID reads the acting user from the X-Actor-ID header. Absent or
// malformed headers fall back to the nil actor.
func actorID(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(r.Header.Get("X-Actor-ID"))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// pathUUID parses a UUID route parameter.
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(chi.URLParam(r, name))
}

// today returns the request's effective date. Operations take dates from the
// caller so they behave deterministically under tests and backfills.
func today(r *http.Request) time.Time {
	if raw := r.URL.Query().Get("today"); raw != "" {
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t
		}
	}
	return time.Now().UTC().Truncate(24 * time.Hour)
}
