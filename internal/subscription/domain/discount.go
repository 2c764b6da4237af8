package domain

import (
	"math"
	"time"
)

// DiscountType distinguishes percentage and fixed-amount discounts.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// IsValid checks if the discount type is known.
func (t DiscountType) IsValid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Discount reduces a subscription's price from its original baseline.
type Discount struct {
	Type       DiscountType `json:"type"`
	Value      float64      `json:"value"`
	Reason     string       `json:"reason,omitempty"`
	ValidFrom  time.Time    `json:"valid_from"`
	ValidUntil *time.Time   `json:"valid_until,omitempty"`
}

// Apply computes the discounted price from the original baseline, rounded to
// the currency's minor unit.
func (d Discount) Apply(originalPrice float64) float64 {
	switch d.Type {
	case DiscountPercentage:
		return RoundPrice(originalPrice * (1 - d.Value/100))
	case DiscountFixed:
		price := originalPrice - d.Value
		if price < 0 {
			price = 0
		}
		return RoundPrice(price)
	default:
		return RoundPrice(originalPrice)
	}
}

// validate checks the discount value against the price baseline.
func (d Discount) validate(originalPrice float64) error {
	if !d.Type.IsValid() {
		return ErrInvalidDiscount
	}
	switch d.Type {
	case DiscountPercentage:
		if d.Value < 0 || d.Value > 100 {
			return ErrInvalidDiscount
		}
	case DiscountFixed:
		if d.Value < 0 || d.Value > originalPrice {
			return ErrInvalidDiscount
		}
	}
	return nil
}

// ExpiredAt reports whether the discount's validity window has passed.
func (d Discount) ExpiredAt(today time.Time) bool {
	return d.ValidUntil != nil && d.ValidUntil.Before(today)
}

// DiscountHistoryEntry snapshots one application of a discount.
type DiscountHistoryEntry struct {
	Discount    Discount   `json:"discount"`
	PriceBefore float64    `json:"price_before"`
	PriceAfter  float64    `json:"price_after"`
	AppliedAt   time.Time  `json:"applied_at"`
	RemovedAt   *time.Time `json:"removed_at,omitempty"`
}

// RoundPrice rounds a price to two decimal places (currency minor unit).
func RoundPrice(v float64) float64 {
	return math.Round(v*100) / 100
}
