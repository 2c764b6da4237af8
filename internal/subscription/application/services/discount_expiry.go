package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/coachdesk/coachdesk/internal/subscription/application/commands"
	"github.com/coachdesk/coachdesk/internal/subscription/domain"
)

// DiscountExpiryService removes discounts whose validity window has passed,
// restoring each subscription's original price.
type DiscountExpiryService struct {
	repo   domain.Repository
	remove *commands.RemoveDiscountHandler
	logger *slog.Logger
}

// NewDiscountExpiryService creates a DiscountExpiryService.
func NewDiscountExpiryService(repo domain.Repository, remove *commands.RemoveDiscountHandler, logger *slog.Logger) *DiscountExpiryService {
	return &DiscountExpiryService{repo: repo, remove: remove, logger: logger}
}

// Run removes all expired discounts and returns how many were removed.
func (s *DiscountExpiryService) Run(ctx context.Context, today time.Time) (int, error) {
	due, err := s.repo.FindWithExpiringDiscounts(ctx, today)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sub := range due {
		discount := sub.Discount()
		if discount == nil || !discount.ExpiredAt(today) {
			continue
		}
		_, err := s.remove.Handle(ctx, commands.RemoveDiscountCommand{
			SubscriptionID: sub.ID(),
			Reason:         "discount validity ended",
			ActorID:        systemActor,
		})
		if err != nil {
			s.logger.Error("discount expiry failed",
				"subscription_id", sub.ID(),
				"error", err,
			)
			continue
		}
		removed++
		s.logger.Info("expired discount removed", "subscription_id", sub.ID())
	}
	return removed, nil
}
