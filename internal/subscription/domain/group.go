package domain

import (
	"time"

	"github.com/google/uuid"
)

// GroupMember is one participant of a group subscription. Each member also
// owns an independent individual subscription sharing the parent's group ID.
type GroupMember struct {
	ID             uuid.UUID  `json:"id"`
	CustomerID     uuid.UUID  `json:"customer_id"`
	SubscriptionID uuid.UUID  `json:"subscription_id"`
	Name           string     `json:"name"`
	JoinedAt       time.Time  `json:"joined_at"`
	Active         bool       `json:"active"`
	LeftAt         *time.Time `json:"left_at,omitempty"`
}

// GroupTerms holds the group-level discount policy of a parent subscription.
type GroupTerms struct {
	Discount   Discount `json:"discount"`
	MinMembers int      `json:"min_members"`
	Applied    bool     `json:"applied"`
}

// GroupPricing is the result of pricing a group for a given member count.
type GroupPricing struct {
	Total           float64
	DiscountedTotal float64
	PerMember       float64
	DiscountApplied bool
}

// PriceGroup computes the group total from per-member base prices and splits
// the discounted total pro rata. The group discount only kicks in once the
// member count reaches the configured minimum.
func PriceGroup(memberBasePrices []float64, terms *GroupTerms) GroupPricing {
	var total float64
	for _, p := range memberBasePrices {
		total += p
	}
	total = RoundPrice(total)

	pricing := GroupPricing{Total: total, DiscountedTotal: total}
	count := len(memberBasePrices)
	if terms != nil && count >= terms.MinMembers {
		pricing.DiscountedTotal = terms.Discount.Apply(total)
		pricing.DiscountApplied = true
	}
	if count > 0 {
		pricing.PerMember = RoundPrice(pricing.DiscountedTotal / float64(count))
	}
	return pricing
}
