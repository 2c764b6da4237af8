package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coachdesk/coachdesk/internal/notification"
	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
)

// reminderTTL keeps a dedupe entry around long enough to outlive the billing
// cycle it belongs to.
const reminderTTL = 45 * 24 * time.Hour

// RenewalService renews subscriptions that reached their renewal date and
// sends upcoming-renewal reminders ahead of time. Reminders are deduplicated
// per subscription and period, so the sweep can run as often as needed.
type RenewalService struct {
	repo      domain.Repository
	renew     *commands.RenewSubscriptionHandler
	sender    notification.Sender
	reminders notification.ReminderLog
	leadDays  int
	logger    *slog.Logger
}

// NewRenewalService creates a RenewalService. leadDays controls how many
// days before the renewal date the reminder goes out.
func NewRenewalService(repo domain.Repository, renew *commands.RenewSubscriptionHandler, sender notification.Sender, reminders notification.ReminderLog, leadDays int, logger *slog.Logger) *RenewalService {
	return &RenewalService{
		repo:      repo,
		renew:     renew,
		sender:    sender,
		reminders: reminders,
		leadDays:  leadDays,
		logger:    logger,
	}
}

// RunResult summarizes one renewal sweep.
type RunResult struct {
	Renewed  int
	Reminded int
	Failed   int
}

// Run processes due renewals and reminders.
func (s *RenewalService) Run(ctx context.Context, today time.Time) (RunResult, error) {
	var result RunResult

	due, err := s.repo.FindDueForRenewal(ctx, today)
	if err != nil {
		return result, err
	}
	for _, sub := range due {
		_, err := s.renew.Handle(ctx, commands.RenewSubscriptionCommand{
			SubscriptionID: sub.ID(),
			Today:          today,
			ActorID:        systemActor,
		})
		if err != nil {
			result.Failed++
			s.logger.Error("renewal failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
			continue
		}
		result.Renewed++
		s.logger.Info("subscription renewed",
			"subscription_id", sub.ID(),
			"customer_id", sub.CustomerID(),
		)
	}

	reminded, err := s.sendReminders(ctx, today)
	result.Reminded = reminded
	if err != nil {
		return result, err
	}
	return result, nil
}

// sendReminders notifies customers whose renewal falls inside the lead
// window.
func (s *RenewalService) sendReminders(ctx context.Context, today time.Time) (int, error) {
	horizon := today.AddDate(0, 0, s.leadDays)
	upcoming, err := s.repo.FindDueForRenewal(ctx, horizon)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, sub := range upcoming {
		if !sub.NextRenewalDate().After(today) {
			// Due now, handled by the renewal pass above.
			continue
		}

		period := sub.NextRenewalDate().Format("2006-01")
		key := notification.ReminderKey(notification.KindRenewalReminder, sub.ID(), period)
		fresh, err := s.reminders.MarkSent(ctx, key, reminderTTL)
		if err != nil {
			s.logger.Error("reminder dedupe check failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
			continue
		}
		if !fresh {
			continue
		}

		channel, recipient := contactFor(sub)
		n := notification.Notification{
			CustomerID:     sub.CustomerID(),
			SubscriptionID: sub.ID(),
			Kind:           notification.KindRenewalReminder,
			Channel:        channel,
			Recipient:      recipient,
			Subject:        "Your subscription renews soon",
			Body: fmt.Sprintf("Your %s plan renews on %s at %.2f.",
				sub.PlanID(), sub.NextRenewalDate().Format("2006-01-02"), sub.Price()),
		}
		if err := s.sender.Send(ctx, n); err != nil {
			s.logger.Error("renewal reminder failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
			continue
		}
		sent++
	}
	return sent, nil
}

// contactFor resolves the delivery channel and contact address from the
// subscription's metadata. Without a stored contact the customer ID stands
// in as the recipient so the delivery layer can look the address up.
func contactFor(sub *domain.Subscription) (notification.Channel, string) {
	meta := sub.Metadata()

	channel := notification.ChannelEmail
	switch notification.Channel(meta["contact_channel"]) {
	case notification.ChannelSMS:
		channel = notification.ChannelSMS
	case notification.ChannelWhatsApp:
		channel = notification.ChannelWhatsApp
	}

	recipient := meta["contact"]
	if recipient == "" {
		recipient = sub.CustomerID().String()
	}
	return channel, recipient
}
