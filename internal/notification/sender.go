// Package notification delivers customer-facing messages triggered by the
// subscription lifecycle: renewal reminders, freeze confirmations, expiry
// notices.
package notification

import (
	"context"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindRenewalReminder  Kind = "renewal-reminder"
	KindTrialEnding      Kind = "trial-ending"
	KindDiscountExpiring Kind = "discount-expiring"
	KindSubscriptionInfo Kind = "subscription-info"
)

// Channel is the delivery channel of a notification.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelWhatsApp Channel = "whatsapp"
)

// Notification is one message to a customer. Recipient is the contact
// address on the chosen channel, an email address or a phone number.
type Notification struct {
	CustomerID     uuid.UUID
	SubscriptionID uuid.UUID
	Kind           Kind
	Channel        Channel
	Recipient      string
	Subject        string
	Body           string
}

// Sender delivers notifications. Implementations must be safe for concurrent
// use.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
