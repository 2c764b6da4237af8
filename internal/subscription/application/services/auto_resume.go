// Package services contains the scheduled lifecycle sweeps: auto-resume of
// expired freezes, discount expiry, renewals with reminders, and trial
// expiry. The worker runs them on a cron schedule.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
	"github.com/google/uuid"
)

// systemActor marks sweep-initiated changes in event metadata.
var systemActor = uuid.Nil

// AutoResumeService resumes frozen subscriptions whose freeze window has
// ended and was marked for automatic resumption.
type AutoResumeService struct {
	repo     domain.Repository
	unfreeze *commands.UnfreezeSubscriptionHandler
	logger   *slog.Logger
}

// NewAutoResumeService creates an AutoResumeService.
func NewAutoResumeService(repo domain.Repository, unfreeze *commands.UnfreezeSubscriptionHandler, logger *slog.Logger) *AutoResumeService {
	return &AutoResumeService{repo: repo, unfreeze: unfreeze, logger: logger}
}

// Run resumes all due subscriptions and returns how many were resumed. A
// failure on one subscription does not stop the sweep.
func (s *AutoResumeService) Run(ctx context.Context, today time.Time) (int, error) {
	due, err := s.repo.FindFrozenDueForResume(ctx, today)
	if err != nil {
		return 0, err
	}

	resumed := 0
	for _, sub := range due {
		_, err := s.unfreeze.Handle(ctx, commands.UnfreezeSubscriptionCommand{
			SubscriptionID: sub.ID(),
			ActorID:        systemActor,
		})
		if err != nil {
			s.logger.Error("auto-resume failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
			continue
		}
		resumed++
		s.logger.Info("subscription auto-resumed", "subscription_id", sub.ID())
	}
	return resumed, nil
}
