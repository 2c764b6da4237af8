package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coachdesk/coachdesk/internal/notification"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
)

// TrialExpiryService expires trials whose window has lapsed without
// conversion, notifying the customer shortly before.
type TrialExpiryService struct {
	repo      domain.Repository
	expire    *commands.ExpireSubscriptionHandler
	sender    notification.Sender
	reminders notification.ReminderLog
	logger    *slog.Logger
}

// NewTrialExpiryService creates a TrialExpiryService.
func NewTrialExpiryService(repo domain.Repository, expire *commands.ExpireSubscriptionHandler, sender notification.Sender, reminders notification.ReminderLog, logger *slog.Logger) *TrialExpiryService {
	return &TrialExpiryService{repo: repo, expire: expire, sender: sender, reminders: reminders, logger: logger}
}

// Run expires lapsed trials and warns customers whose trial ends within
// three days. Returns how many trials were expired.
func (s *TrialExpiryService) Run(ctx context.Context, today time.Time) (int, error) {
	warnHorizon := today.AddDate(0, 0, 3)
	ending, err := s.repo.FindTrialsExpiring(ctx, warnHorizon)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, sub := range ending {
		trial := sub.Trial()
		if trial == nil {
			continue
		}

		if trial.EndDate.After(today) {
			s.warn(ctx, sub)
			continue
		}

		err := s.expire.Handle(ctx, commands.ExpireSubscriptionCommand{
			SubscriptionID: sub.ID(),
			Reason:         "trial ended without conversion",
			Today:          today,
			ActorID:        systemActor,
		})
		if err != nil {
			s.logger.Error("trial expiry failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
			continue
		}
		expired++
		s.logger.Info("trial expired",
			"subscription_id", sub.ID(),
			"customer_id", sub.CustomerID(),
		)
	}
	return expired, nil
}

func (s *TrialExpiryService) warn(ctx context.Context, sub *domain.Subscription) {
	period := sub.Trial().EndDate.Format("2006-01-02")
	key := notification.ReminderKey(notification.KindTrialEnding, sub.ID(), period)
	fresh, err := s.reminders.MarkSent(ctx, key, reminderTTL)
	if err != nil || !fresh {
		return
	}

	channel, recipient := contactFor(sub)
	n := notification.Notification{
		CustomerID:     sub.CustomerID(),
		SubscriptionID: sub.ID(),
		Kind:           notification.KindTrialEnding,
		Channel:        channel,
		Recipient:      recipient,
		Subject:        "Your trial ends soon",
		Body:           "Your trial ends on " + period + ". Convert to keep training.",
	}
	if err := s.sender.Send(ctx, n); err != nil {
		s.logger.Error("trial reminder failed",
			"subscription_id", sub.ID(),
			"error", err,
		)
	}
}
