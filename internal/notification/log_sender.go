package notification

import (
	"context"
	"log/slog"
)

// LogSender writes notifications to the log instead of delivering them. Used
// in local mode and as the default when no delivery channel is configured.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send logs the notification.
func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.logger.Info("notification",
		"kind", n.Kind,
		"channel", n.Channel,
		"recipient", n.Recipient,
		"customer_id", n.CustomerID,
		"subscription_id", n.SubscriptionID,
		"subject", n.Subject,
	)
	return nil
}
