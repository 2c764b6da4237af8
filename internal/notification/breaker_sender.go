package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BreakerSender wraps a Sender with a circuit breaker so a failing delivery
// channel cannot stall the lifecycle sweeps behind it.
type BreakerSender struct {
	inner   Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSender wraps inner with a circuit breaker. The breaker opens
// after five consecutive failures and probes again after 30 seconds.
func NewBreakerSender(inner Sender, logger *slog.Logger) *BreakerSender {
	settings := gobreaker.Settings{
		Name:    "notification-sender",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("notification breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerSender{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker[struct{}](settings),
	}
}

// Send delivers through the breaker. When the breaker is open the send fails
// fast with gobreaker.ErrOpenState.
func (s *BreakerSender) Send(ctx context.Context, n Notification) error {
	_, err := s.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, s.inner.Send(ctx, n)
	})
	return err
}
