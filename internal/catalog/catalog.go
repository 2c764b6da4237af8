// Package catalog holds the plan definitions subscriptions are created from.
package catalog

import (
	"errors"
	"fmt"
	"sort"

	"github.com/coachdesk/coachdesk/internal/subscription/domain"
)

var ErrPlanNotFound = errors.New("plan not found")

// Plan is a purchasable subscription offering.
type Plan struct {
	ID               string                  `json:"id"`
	Name             string                  `json:"name"`
	Kind             domain.Kind             `json:"kind"`
	Frequency        domain.BillingFrequency `json:"frequency"`
	Price            float64                 `json:"price"`
	SessionsIncluded int                     `json:"sessions_included"`
	TrialDays        int                     `json:"trial_days"`
	TrialSessions    int                     `json:"trial_sessions"`
	TrialPrice       float64                 `json:"trial_price"`
}

// Catalog resolves plan IDs to plan definitions.
type Catalog interface {
	Plan(id string) (Plan, error)
	Plans() []Plan
}

// StaticCatalog serves plans from an in-memory table.
type StaticCatalog struct {
	plans map[string]Plan
}

// NewStaticCatalog creates a catalog from the given plans.
func NewStaticCatalog(plans ...Plan) *StaticCatalog {
	table := make(map[string]Plan, len(plans))
	for _, p := range plans {
		table[p.ID] = p
	}
	return &StaticCatalog{plans: table}
}

// DefaultCatalog returns the built-in plan table used when no external plan
// source is configured.
func DefaultCatalog() *StaticCatalog {
	return NewStaticCatalog(
		Plan{ID: "pt-4", Name: "Personal Training 4", Kind: domain.KindPersonalTraining, Frequency: domain.BillingMonthly, Price: 140, SessionsIncluded: 4, TrialDays: 14, TrialSessions: 1, TrialPrice: 29},
		Plan{ID: "pt-8", Name: "Personal Training 8", Kind: domain.KindPersonalTraining, Frequency: domain.BillingMonthly, Price: 240, SessionsIncluded: 8, TrialDays: 14, TrialSessions: 2, TrialPrice: 49},
		Plan{ID: "pt-12", Name: "Personal Training 12", Kind: domain.KindPersonalTraining, Frequency: domain.BillingMonthly, Price: 330, SessionsIncluded: 12, TrialDays: 14, TrialSessions: 2, TrialPrice: 49},
		Plan{ID: "gym-monthly", Name: "Gym Membership Monthly", Kind: domain.KindGymMembership, Frequency: domain.BillingMonthly, Price: 59},
		Plan{ID: "gym-annual", Name: "Gym Membership Annual", Kind: domain.KindGymMembership, Frequency: domain.BillingAnnual, Price: 590},
	)
}

// Plan returns the plan with the given ID.
func (c *StaticCatalog) Plan(id string) (Plan, error) {
	p, ok := c.plans[id]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %s", ErrPlanNotFound, id)
	}
	return p, nil
}

// Plans returns all plans sorted by ID.
func (c *StaticCatalog) Plans() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, p := range c.plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
