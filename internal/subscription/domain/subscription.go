// Package domain contains the subscription bounded context: the aggregate,
// its session ledger, discounts, freezes, group terms, and the append-only
// audit trail of every mutation.
package domain

import (
	"fmt"
	"strconv"
	"time"

	sharedDomain "github.com/coachdesk/coachdesk/internal/shared/domain"
	"github.com/google/uuid"
)

// Kind classifies what the customer bought.
type Kind string

const (
	KindPersonalTraining Kind = "personal-training-monthly"
	KindGymMembership    Kind = "gym-membership"
)

// IsValid checks if the kind is known.
func (k Kind) IsValid() bool {
	return k == KindPersonalTraining || k == KindGymMembership
}

// SessionBearing reports whether subscriptions of this kind carry a session
// ledger. Flat gym memberships track no sessions.
func (k Kind) SessionBearing() bool {
	return k == KindPersonalTraining
}

// BillingFrequency is the renewal cadence of a subscription.
type BillingFrequency string

const (
	BillingMonthly    BillingFrequency = "monthly"
	BillingQuarterly  BillingFrequency = "quarterly"
	BillingSemiannual BillingFrequency = "semiannual"
	BillingAnnual     BillingFrequency = "annual"
)

// IsValid checks if the frequency is known.
func (f BillingFrequency) IsValid() bool {
	switch f {
	case BillingMonthly, BillingQuarterly, BillingSemiannual, BillingAnnual:
		return true
	default:
		return false
	}
}

// Months returns the cycle length in calendar months.
func (f BillingFrequency) Months() int {
	switch f {
	case BillingQuarterly:
		return 3
	case BillingSemiannual:
		return 6
	case BillingAnnual:
		return 12
	default:
		return 1
	}
}

// State is the lifecycle state of a subscription.
type State string

const (
	StateTrial     State = "trial"
	StateActive    State = "active"
	StateFrozen    State = "frozen"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
)

// IsTerminal reports whether no further transitions are allowed.
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateExpired
}

// allowedTransitions is the full lifecycle edge set. Anything not listed
// fails with ErrInvalidTransition.
var allowedTransitions = map[State][]State{
	StateTrial:  {StateActive, StateExpired},
	StateActive: {StateFrozen, StateCancelled, StateExpired},
	StateFrozen: {StateActive, StateCancelled},
}

func canTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// FreezePeriod is an active pause of a subscription. The expiration shift
// happens at freeze time, not at resume time.
type FreezePeriod struct {
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Days          int       `json:"days"`
	AutoResume    bool      `json:"auto_resume"`
	ResumeBilling bool      `json:"resume_billing"`
}

// DaysRemaining returns the whole days left until the freeze ends.
func (f FreezePeriod) DaysRemaining(today time.Time) int {
	remaining := int(f.End.Sub(today).Hours() / 24)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// TrialTerms describes the introductory window of a trial subscription.
type TrialTerms struct {
	Sessions     int       `json:"sessions"`
	Price        float64   `json:"price"`
	DurationDays int       `json:"duration_days"`
	EndDate      time.Time `json:"end_date"`
}

// PlanChange is a plan switch staged for the next renewal.
type PlanChange struct {
	PlanID           string  `json:"plan_id"`
	SessionsIncluded int     `json:"sessions_included"`
	Price            float64 `json:"price"`
}

// TrialSpec configures the trial variant at creation time.
type TrialSpec struct {
	Sessions     int
	Price        float64
	DurationDays int
}

// CreateSpec is the input for creating a subscription.
type CreateSpec struct {
	CustomerID       uuid.UUID
	TrainerID        *uuid.UUID
	Kind             Kind
	PlanID           string
	Frequency        BillingFrequency
	Price            float64
	SessionsIncluded int
	StartDate        time.Time
	RecurringBilling bool
	Trial            *TrialSpec
}

// Subscription is the aggregate root of the billing engine. All mutations go
// through its methods, every user-visible change appends a ChangeRecord, and
// the ledger/price invariants are re-established before a method returns.
type Subscription struct {
	sharedDomain.BaseAggregateRoot

	customerID uuid.UUID
	trainerID  *uuid.UUID
	groupID    *uuid.UUID

	kind      Kind
	planID    string
	frequency BillingFrequency

	price           float64
	originalPrice   *float64
	discount        *Discount
	discountHistory []DiscountHistoryEntry

	state              State
	startDate          time.Time
	expirationDate     time.Time
	nextRenewalDate    time.Time
	cancellationReason string
	cancellationDate   *time.Time
	recurringBilling   bool

	ledger    *SessionLedger
	transfers []*SessionTransfer

	freeze *FreezePeriod
	trial  *TrialTerms

	group   *GroupTerms
	members []*GroupMember

	pendingPlan *PlanChange
	metadata    map[string]string

	history []*ChangeRecord
}

// NewSubscription creates a trial or regular subscription. All validation
// happens before any state is written.
func NewSubscription(spec CreateSpec) (*Subscription, error) {
	if spec.CustomerID == uuid.Nil {
		return nil, fmt.Errorf("%w: customer id is required", ErrInvalidSpec)
	}
	if !spec.Kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidSpec, spec.Kind)
	}
	if spec.PlanID == "" {
		return nil, fmt.Errorf("%w: plan id is required", ErrInvalidSpec)
	}
	if !spec.Frequency.IsValid() {
		return nil, fmt.Errorf("%w: unknown billing frequency %q", ErrInvalidSpec, spec.Frequency)
	}
	if spec.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidSpec)
	}
	if spec.SessionsIncluded < 0 {
		return nil, fmt.Errorf("%w: included sessions must not be negative", ErrInvalidSpec)
	}
	if spec.StartDate.IsZero() {
		return nil, fmt.Errorf("%w: start date is required", ErrInvalidSpec)
	}
	if spec.Trial != nil && spec.Trial.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: trial duration must be positive", ErrInvalidSpec)
	}

	s := &Subscription{
		BaseAggregateRoot: sharedDomain.NewBaseAggregateRoot(),
		customerID:        spec.CustomerID,
		trainerID:         spec.TrainerID,
		kind:              spec.Kind,
		planID:            spec.PlanID,
		frequency:         spec.Frequency,
		price:             RoundPrice(spec.Price),
		state:             StateActive,
		startDate:         spec.StartDate,
		recurringBilling:  spec.RecurringBilling,
		metadata:          make(map[string]string),
	}

	if spec.Kind.SessionBearing() {
		s.ledger = NewSessionLedger(spec.SessionsIncluded)
	}

	if spec.Trial != nil {
		s.state = StateTrial
		endDate := spec.StartDate.AddDate(0, 0, spec.Trial.DurationDays)
		s.trial = &TrialTerms{
			Sessions:     spec.Trial.Sessions,
			Price:        spec.Trial.Price,
			DurationDays: spec.Trial.DurationDays,
			EndDate:      endDate,
		}
		s.price = RoundPrice(spec.Trial.Price)
		s.expirationDate = endDate
		s.nextRenewalDate = endDate
		if s.ledger != nil && spec.Trial.Sessions > 0 {
			s.ledger = NewSessionLedger(spec.Trial.Sessions)
		}
	} else {
		s.expirationDate = spec.StartDate.AddDate(0, spec.Frequency.Months(), 0)
		s.nextRenewalDate = s.expirationDate
	}

	record := newChangeRecord(s.ID(), ChangeCreation, "subscription created", "").
		withDelta("state", "", string(s.state)).
		withDelta("plan_id", "", s.planID).
		withDelta("price", "", formatPrice(s.price))
	if s.ledger != nil {
		record.withDelta("included_sessions", "", strconv.Itoa(s.ledger.Included()))
	}
	s.appendRecord(record)

	s.AddDomainEvent(NewSubscriptionCreated(s))
	return s, nil
}

// Getters
func (s *Subscription) CustomerID() uuid.UUID                   { return s.customerID }
func (s *Subscription) TrainerID() *uuid.UUID                   { return s.trainerID }
func (s *Subscription) GroupID() *uuid.UUID                     { return s.groupID }
func (s *Subscription) Kind() Kind                              { return s.kind }
func (s *Subscription) PlanID() string                          { return s.planID }
func (s *Subscription) Frequency() BillingFrequency             { return s.frequency }
func (s *Subscription) Price() float64                          { return s.price }
func (s *Subscription) OriginalPrice() *float64                 { return s.originalPrice }
func (s *Subscription) Discount() *Discount                     { return s.discount }
func (s *Subscription) DiscountHistory() []DiscountHistoryEntry { return s.discountHistory }
func (s *Subscription) State() State                            { return s.state }
func (s *Subscription) StartDate() time.Time                    { return s.startDate }
func (s *Subscription) ExpirationDate() time.Time               { return s.expirationDate }
func (s *Subscription) NextRenewalDate() time.Time              { return s.nextRenewalDate }
func (s *Subscription) CancellationReason() string              { return s.cancellationReason }
func (s *Subscription) CancellationDate() *time.Time            { return s.cancellationDate }
func (s *Subscription) RecurringBilling() bool                  { return s.recurringBilling }
func (s *Subscription) Ledger() *SessionLedger                  { return s.ledger }
func (s *Subscription) Freeze() *FreezePeriod                   { return s.freeze }
func (s *Subscription) Trial() *TrialTerms                      { return s.trial }
func (s *Subscription) IsTrial() bool                           { return s.trial != nil && s.state == StateTrial }
func (s *Subscription) Group() *GroupTerms                      { return s.group }
func (s *Subscription) IsGroup() bool                           { return s.group != nil }
func (s *Subscription) Members() []*GroupMember                 { return s.members }
func (s *Subscription) PendingPlan() *PlanChange                { return s.pendingPlan }
func (s *Subscription) Metadata() map[string]string             { return s.metadata }

// Transfers returns all transfer records, pending and applied.
func (s *Subscription) Transfers() []*SessionTransfer { return s.transfers }

// PendingTransfers returns transfers not yet consumed by a renewal.
func (s *Subscription) PendingTransfers() []*SessionTransfer {
	pending := make([]*SessionTransfer, 0)
	for _, t := range s.transfers {
		if !t.Applied {
			pending = append(pending, t)
		}
	}
	return pending
}

// History returns the audit trail, oldest first.
func (s *Subscription) History() []*ChangeRecord { return s.history }

// AvailableSessions returns the current cycle balance, or zero for plans
// without session tracking.
func (s *Subscription) AvailableSessions() int {
	if s.ledger == nil {
		return 0
	}
	return s.ledger.Available()
}

// CurrentPeriod identifies the running billing cycle, e.g. "2025-01". The
// cycle opens one billing interval before the next renewal date.
func (s *Subscription) CurrentPeriod() string {
	return periodOf(s.nextRenewalDate.AddDate(0, -s.frequency.Months(), 0))
}

const periodLayout = "2006-01"

func periodOf(t time.Time) string {
	return t.Format(periodLayout)
}

// transition validates and performs a lifecycle edge.
func (s *Subscription) transition(to State, reason string) error {
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}
	if !canTransition(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
	}

	from := s.state
	s.state = to
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeStateChange,
		fmt.Sprintf("state changed from %s to %s", from, to), reason).
		withDelta("state", string(from), string(to)))
	return nil
}

// ConvertTrial promotes a trial into a regular subscription with the given
// regular terms, starting a fresh cycle today.
func (s *Subscription) ConvertTrial(today time.Time, sessionsIncluded int, price float64) error {
	if s.state != StateTrial {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateActive)
	}
	if price < 0 || sessionsIncluded < 0 {
		return fmt.Errorf("%w: negative trial conversion terms", ErrInvalidSpec)
	}

	if err := s.transition(StateActive, "trial converted"); err != nil {
		return err
	}

	s.trial = nil
	s.price = RoundPrice(price)
	s.startDate = today
	s.expirationDate = today.AddDate(0, s.frequency.Months(), 0)
	s.nextRenewalDate = s.expirationDate
	if s.kind.SessionBearing() {
		s.ledger = NewSessionLedger(sessionsIncluded)
	}

	s.AddDomainEvent(NewTrialConverted(s))
	return nil
}

// StartFreeze pauses the subscription between start and end. The expiration
// and next renewal shift forward by the freeze duration immediately.
func (s *Subscription) StartFreeze(start, end time.Time, reason string, autoResume bool) error {
	if s.state == StateFrozen || s.freeze != nil {
		return ErrAlreadyFrozen
	}
	days := int(end.Sub(start).Hours() / 24)
	if days <= 0 {
		return fmt.Errorf("%w: freeze end must be after start", ErrInvalidRange)
	}
	if err := s.transition(StateFrozen, reason); err != nil {
		return err
	}

	previousExpiration := s.expirationDate
	s.expirationDate = s.expirationDate.AddDate(0, 0, days)
	s.nextRenewalDate = s.nextRenewalDate.AddDate(0, 0, days)
	s.freeze = &FreezePeriod{
		Start:         start,
		End:           end,
		Days:          days,
		AutoResume:    autoResume,
		ResumeBilling: s.recurringBilling,
	}
	s.recurringBilling = false

	s.appendRecord(newChangeRecord(s.ID(), ChangeFreeze,
		fmt.Sprintf("frozen for %d days", days), reason).
		withDelta("expiration_date", formatDate(previousExpiration), formatDate(s.expirationDate)).
		withMeta("freeze_start", formatDate(start)).
		withMeta("freeze_end", formatDate(end)))

	s.AddDomainEvent(NewSubscriptionFrozen(s, days))
	return nil
}

// EndFreeze resumes a frozen subscription. The expiration shift performed at
// freeze time persists.
func (s *Subscription) EndFreeze() error {
	if s.state != StateFrozen || s.freeze == nil {
		return ErrNotFrozen
	}

	resumeBilling := s.freeze.ResumeBilling
	if err := s.transition(StateActive, "freeze ended"); err != nil {
		return err
	}
	s.freeze = nil
	s.recurringBilling = resumeBilling

	s.AddDomainEvent(NewSubscriptionResumed(s))
	return nil
}

// Cancel terminates the subscription. Immediate cancellation cuts access
// today; otherwise access continues until the period end. Recurring billing
// stops in both cases.
func (s *Subscription) Cancel(reason string, immediate bool, today time.Time) error {
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	// Snapshot reporting figures before any mutation.
	unusedSessions := s.AvailableSessions()
	remainingDays := int(s.expirationDate.Sub(today).Hours() / 24)
	if remainingDays < 0 {
		remainingDays = 0
	}

	if err := s.transition(StateCancelled, reason); err != nil {
		return err
	}

	previousExpiration := s.expirationDate
	if immediate {
		s.expirationDate = today
	}
	s.recurringBilling = false
	s.cancellationReason = reason
	cancelledAt := today
	s.cancellationDate = &cancelledAt
	s.freeze = nil

	record := newChangeRecord(s.ID(), ChangeCancellation, "subscription cancelled", reason).
		withMeta("unused_sessions", strconv.Itoa(unusedSessions)).
		withMeta("remaining_days", strconv.Itoa(remainingDays)).
		withMeta("immediate", strconv.FormatBool(immediate))
	if immediate {
		record.withDelta("expiration_date", formatDate(previousExpiration), formatDate(s.expirationDate))
	}
	s.appendRecord(record)

	s.AddDomainEvent(NewSubscriptionCancelled(s, reason, immediate))
	return nil
}

// MarkExpired moves the subscription to Expired, used for lapsed trials and
// renewal failures.
func (s *Subscription) MarkExpired(reason string, today time.Time) error {
	if err := s.transition(StateExpired, reason); err != nil {
		return err
	}
	s.recurringBilling = false
	s.expirationDate = today
	s.AddDomainEvent(NewSubscriptionExpired(s, reason))
	return nil
}

// ChangePlan switches the subscription to a new plan. Immediate upgrades add
// the session delta to the current cycle; immediate downgrades cap the
// available balance at the new included count without refund. Non-immediate
// changes are staged and applied by the next renewal.
func (s *Subscription) ChangePlan(newPlanID string, newSessions int, newPrice float64, immediate bool) error {
	if newPlanID == "" {
		return fmt.Errorf("%w: plan id is required", ErrInvalidSpec)
	}
	if newPrice < 0 || newSessions < 0 {
		return fmt.Errorf("%w: negative plan terms", ErrInvalidSpec)
	}
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	if !immediate {
		s.pendingPlan = &PlanChange{PlanID: newPlanID, SessionsIncluded: newSessions, Price: newPrice}
		s.Touch()
		s.appendRecord(newChangeRecord(s.ID(), ChangePlanChange,
			fmt.Sprintf("plan change to %s staged for next renewal", newPlanID), "").
			withMeta("staged", "true"))
		return nil
	}

	previousPlan := s.planID
	previousPrice := s.price
	s.planID = newPlanID
	s.applyPrice(newPrice)

	record := newChangeRecord(s.ID(), ChangePlanChange,
		fmt.Sprintf("plan changed from %s to %s", previousPlan, newPlanID), "").
		withDelta("plan_id", previousPlan, newPlanID).
		withDelta("price", formatPrice(previousPrice), formatPrice(s.price))

	if s.ledger != nil {
		previousAvailable := s.ledger.Available()
		previousIncluded := s.ledger.included
		s.ledger.included = newSessions
		// Downgrades cap the balance at the new included count without refund.
		if newSessions < previousIncluded {
			if available := s.ledger.Available(); available > newSessions {
				s.ledger.adjustment -= available - newSessions
			}
		}
		record.withDelta("available_sessions",
			strconv.Itoa(previousAvailable), strconv.Itoa(s.ledger.Available()))
	}
	s.Touch()
	s.appendRecord(record)

	s.AddDomainEvent(NewPlanChanged(s, previousPlan))
	return nil
}

// applyPrice sets a new base price, re-deriving the discounted price when a
// discount is active.
func (s *Subscription) applyPrice(newPrice float64) {
	if s.discount != nil {
		base := RoundPrice(newPrice)
		s.originalPrice = &base
		s.price = s.discount.Apply(base)
		return
	}
	s.originalPrice = nil
	s.price = RoundPrice(newPrice)
}

// AdjustSessions applies a signed session delta. Immediate adjustments hit
// the running cycle; staged adjustments wait for the next renewal. Saturating
// at zero is reported, not treated as an error.
func (s *Subscription) AdjustSessions(delta int, reason string, effectiveNow bool) (clamped bool, err error) {
	if s.ledger == nil {
		return false, ErrNoSessionsOnPlan
	}
	if delta == 0 {
		return false, fmt.Errorf("%w: adjustment delta must be non-zero", ErrInvalidAmount)
	}
	if s.state.IsTerminal() {
		return false, fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	if !effectiveNow {
		s.ledger.stagedAdjustment += delta
		s.Touch()
		s.appendRecord(newChangeRecord(s.ID(), ChangeSessionAdjustment,
			fmt.Sprintf("session adjustment of %+d staged for next renewal", delta), reason).
			withMeta("staged", "true"))
		return false, nil
	}

	before := s.ledger.Available()
	s.ledger.adjustment += delta
	clamped = s.ledger.raw() < 0
	s.Touch()

	record := newChangeRecord(s.ID(), ChangeSessionAdjustment,
		fmt.Sprintf("sessions adjusted by %+d", delta), reason).
		withDelta("available_sessions", strconv.Itoa(before), strconv.Itoa(s.ledger.Available()))
	if clamped {
		record.withMeta("clamped", "true")
	}
	s.appendRecord(record)
	return clamped, nil
}

// AddBonusSessions grants free sessions for the current cycle.
func (s *Subscription) AddBonusSessions(count int, reason string) error {
	if s.ledger == nil {
		return ErrNoSessionsOnPlan
	}
	if count <= 0 {
		return fmt.Errorf("%w: bonus count must be positive", ErrInvalidAmount)
	}
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	before := s.ledger.Available()
	s.ledger.bonus += count
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeBonusSessions,
		fmt.Sprintf("%d bonus sessions granted", count), reason).
		withDelta("available_sessions", strconv.Itoa(before), strconv.Itoa(s.ledger.Available())))
	return nil
}

// TransferSessions moves unused sessions to a future billing period. A nil
// count transfers everything available, silently capped by maxTransferable;
// an explicit count above the cap is rejected.
func (s *Subscription) TransferSessions(count *int, sourcePeriod, destinationPeriod string, maxTransferable int) (*SessionTransfer, error) {
	if s.ledger == nil {
		return nil, ErrNoSessionsOnPlan
	}
	if s.state.IsTerminal() {
		return nil, fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	available := s.ledger.Available()
	if available == 0 {
		return nil, ErrNoSessionsAvailable
	}
	if destinationPeriod == "" {
		destinationPeriod = periodOf(s.nextRenewalDate)
	}
	if count != nil {
		if *count <= 0 {
			return nil, fmt.Errorf("%w: transfer count must be positive", ErrInvalidAmount)
		}
		if maxTransferable > 0 && *count > maxTransferable {
			return nil, fmt.Errorf("%w: requested %d, cap is %d", ErrTransferLimitExceeded, *count, maxTransferable)
		}
	}

	sessions := available
	if count != nil && *count < sessions {
		sessions = *count
	}
	if maxTransferable > 0 && sessions > maxTransferable {
		sessions = maxTransferable
	}

	s.ledger.transferredOut += sessions
	transfer := &SessionTransfer{
		ID:                uuid.New(),
		SourcePeriod:      sourcePeriod,
		DestinationPeriod: destinationPeriod,
		Sessions:          sessions,
		AvailableBefore:   available,
		AvailableAfter:    s.ledger.Available(),
		TransferredAt:     time.Now().UTC(),
	}
	s.transfers = append(s.transfers, transfer)
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeSessionTransfer,
		fmt.Sprintf("%d sessions transferred from %s to %s", sessions, sourcePeriod, destinationPeriod), "").
		withDelta("available_sessions", strconv.Itoa(available), strconv.Itoa(s.ledger.Available())).
		withMeta("destination_period", destinationPeriod))

	s.AddDomainEvent(NewSessionsTransferred(s, transfer))
	return transfer, nil
}

// ApplyPendingTransfers folds pending transfers whose destination period has
// arrived into the current cycle without waiting for a renewal. Transfers
// destined for a later period stay pending. Returns the sessions applied.
func (s *Subscription) ApplyPendingTransfers(today time.Time) (int, error) {
	if s.ledger == nil {
		return 0, ErrNoSessionsOnPlan
	}
	if s.state.IsTerminal() {
		return 0, fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	period := periodOf(today)
	applied := 0
	for _, t := range s.transfers {
		if !t.Applied && t.DestinationPeriod <= period {
			t.Applied = true
			applied += t.Sessions
		}
	}
	if applied == 0 {
		return 0, nil
	}

	before := s.ledger.Available()
	s.ledger.transferredIn += applied
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeSessionTransfer,
		fmt.Sprintf("%d transferred sessions applied", applied), "").
		withDelta("available_sessions", strconv.Itoa(before), strconv.Itoa(s.ledger.Available())))
	return applied, nil
}

// RecordUsage consumes sessions from the current cycle. Over-consumption is
// rejected before any mutation.
func (s *Subscription) RecordUsage(count int) error {
	if s.ledger == nil {
		return ErrNoSessionsOnPlan
	}
	if count <= 0 {
		return fmt.Errorf("%w: usage count must be positive", ErrInvalidAmount)
	}
	if s.state != StateActive && s.state != StateTrial {
		return fmt.Errorf("%w: subscription is %s", ErrInvalidTransition, s.state)
	}
	if count > s.ledger.Available() {
		return fmt.Errorf("%w: requested %d, available %d", ErrInsufficientSessions, count, s.ledger.Available())
	}

	before := s.ledger.Available()
	s.ledger.used += count
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeOther,
		fmt.Sprintf("%d sessions used", count), "").
		withDelta("available_sessions", strconv.Itoa(before), strconv.Itoa(s.ledger.Available())))
	return nil
}

// ApplyDiscount applies a percentage or fixed discount. The first application
// snapshots the pre-discount price as the baseline for later removal.
func (s *Subscription) ApplyDiscount(d Discount) error {
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	base := s.price
	if s.originalPrice != nil {
		base = *s.originalPrice
	}
	if err := d.validate(base); err != nil {
		return err
	}

	if s.originalPrice == nil {
		snapshot := s.price
		s.originalPrice = &snapshot
	}
	previousPrice := s.price
	s.discount = &d
	s.price = d.Apply(*s.originalPrice)
	s.discountHistory = append(s.discountHistory, DiscountHistoryEntry{
		Discount:    d,
		PriceBefore: previousPrice,
		PriceAfter:  s.price,
		AppliedAt:   time.Now().UTC(),
	})
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeDiscountApplied,
		fmt.Sprintf("%s discount of %s applied", d.Type, formatPrice(d.Value)), d.Reason).
		withDelta("price", formatPrice(previousPrice), formatPrice(s.price)))

	s.AddDomainEvent(NewDiscountApplied(s, d))
	return nil
}

// RemoveDiscount restores the original price exactly and closes the open
// discount history entry.
func (s *Subscription) RemoveDiscount(reason string) error {
	if s.discount == nil {
		return ErrNoActiveDiscount
	}

	previousPrice := s.price
	s.price = *s.originalPrice
	s.discount = nil
	now := time.Now().UTC()
	for i := len(s.discountHistory) - 1; i >= 0; i-- {
		if s.discountHistory[i].RemovedAt == nil {
			s.discountHistory[i].RemovedAt = &now
			break
		}
	}
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeDiscountRemoved, "discount removed", reason).
		withDelta("price", formatPrice(previousPrice), formatPrice(s.price)))

	s.AddDomainEvent(NewDiscountRemoved(s, reason))
	return nil
}

// Renew rolls an active subscription into its next billing cycle: staged
// plan changes and adjustments take effect, pending transfers land, and the
// expiration and renewal dates advance one cycle.
func (s *Subscription) Renew(today time.Time) error {
	if s.state != StateActive {
		return fmt.Errorf("%w: cannot renew a %s subscription", ErrInvalidTransition, s.state)
	}

	if s.pendingPlan != nil {
		s.planID = s.pendingPlan.PlanID
		s.applyPrice(s.pendingPlan.Price)
		if s.ledger != nil {
			s.ledger.included = s.pendingPlan.SessionsIncluded
		}
		s.pendingPlan = nil
	}

	// The renewal opens the cycle starting at the current renewal date; only
	// transfers destined for that period (or an already elapsed one) land.
	carriedIn := 0
	if s.ledger != nil {
		openingPeriod := periodOf(s.nextRenewalDate)
		for _, t := range s.transfers {
			if !t.Applied && t.DestinationPeriod <= openingPeriod {
				carriedIn += t.Sessions
				t.Applied = true
			}
		}
		s.ledger.beginCycle(s.ledger.included, carriedIn)
	}

	s.expirationDate = s.expirationDate.AddDate(0, s.frequency.Months(), 0)
	s.nextRenewalDate = s.expirationDate
	s.Touch()

	record := newChangeRecord(s.ID(), ChangeOther, "subscription renewed", "").
		withDelta("expiration_date", "", formatDate(s.expirationDate))
	if carriedIn > 0 {
		record.withMeta("transferred_sessions_applied", strconv.Itoa(carriedIn))
	}
	s.appendRecord(record)

	s.AddDomainEvent(NewSubscriptionRenewed(s, today))
	return nil
}

// SetMetadataValue stores a free-form key/value pair on the subscription.
func (s *Subscription) SetMetadataValue(key, value string) {
	if s.metadata == nil {
		s.metadata = make(map[string]string)
	}
	previous := s.metadata[key]
	s.metadata[key] = value
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeOther,
		fmt.Sprintf("metadata %q updated", key), "").
		withDelta("metadata."+key, previous, value))
}

// ConfigureGroup turns the subscription into a group parent with the given
// discount policy, or updates the policy of an existing group.
func (s *Subscription) ConfigureGroup(terms GroupTerms) error {
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}
	if !terms.Discount.Type.IsValid() || terms.Discount.Value < 0 {
		return ErrInvalidDiscount
	}
	if terms.Discount.Type == DiscountPercentage && terms.Discount.Value > 100 {
		return ErrInvalidDiscount
	}
	if terms.MinMembers < 1 {
		return fmt.Errorf("%w: minimum members must be at least 1", ErrInvalidSpec)
	}

	s.group = &terms
	s.Touch()
	s.appendRecord(newChangeRecord(s.ID(), ChangeOther, "group terms configured", "").
		withMeta("min_members", strconv.Itoa(terms.MinMembers)))
	return nil
}

// LinkGroup attaches an individual subscription to a group parent.
func (s *Subscription) LinkGroup(groupID uuid.UUID) {
	s.groupID = &groupID
	s.Touch()
	s.appendRecord(newChangeRecord(s.ID(), ChangeOther, "linked to group", "").
		withDelta("group_id", "", groupID.String()))
}

// AddMember registers a participant on a group parent.
func (s *Subscription) AddMember(customerID, subscriptionID uuid.UUID, name string, now time.Time) (*GroupMember, error) {
	if s.group == nil {
		return nil, ErrNotGroup
	}
	if s.state.IsTerminal() {
		return nil, fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}

	member := &GroupMember{
		ID:             uuid.New(),
		CustomerID:     customerID,
		SubscriptionID: subscriptionID,
		Name:           name,
		JoinedAt:       now,
		Active:         true,
	}
	s.members = append(s.members, member)
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangeOther,
		fmt.Sprintf("member %s joined group", name), "").
		withMeta("member_count", strconv.Itoa(s.ActiveMemberCount())))

	s.AddDomainEvent(NewGroupMemberAdded(s, member))
	return member, nil
}

// RemoveMember deactivates a participant. The member record stays for the
// audit trail.
func (s *Subscription) RemoveMember(memberID uuid.UUID, now time.Time) error {
	if s.group == nil {
		return ErrNotGroup
	}

	for _, m := range s.members {
		if m.ID == memberID && m.Active {
			m.Active = false
			left := now
			m.LeftAt = &left
			s.Touch()

			s.appendRecord(newChangeRecord(s.ID(), ChangeOther,
				fmt.Sprintf("member %s left group", m.Name), "").
				withMeta("member_count", strconv.Itoa(s.ActiveMemberCount())))

			s.AddDomainEvent(NewGroupMemberRemoved(s, m))
			return nil
		}
	}
	return ErrMemberNotFound
}

// ActiveMemberCount returns the number of members currently in the group.
func (s *Subscription) ActiveMemberCount() int {
	count := 0
	for _, m := range s.members {
		if m.Active {
			count++
		}
	}
	return count
}

// ApplyGroupRate sets a member subscription's price to its pro-rata share of
// the group total. The member's pre-group price is preserved as the original
// price baseline so group totals keep summing base prices.
func (s *Subscription) ApplyGroupRate(perMember float64) error {
	if s.state.IsTerminal() {
		return fmt.Errorf("%w: subscription is %s", ErrAlreadyTerminal, s.state)
	}
	if perMember < 0 {
		return fmt.Errorf("%w: group rate must not be negative", ErrInvalidAmount)
	}
	// A personal discount owns the price/originalPrice relationship; the
	// group rate must not overwrite it.
	if s.discount != nil {
		return fmt.Errorf("%w: a personal discount is active", ErrInvalidDiscount)
	}

	if s.originalPrice == nil {
		snapshot := s.price
		s.originalPrice = &snapshot
	}
	previousPrice := s.price
	s.price = RoundPrice(perMember)
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangePriceUpdate, "group rate applied", "").
		withDelta("price", formatPrice(previousPrice), formatPrice(s.price)))
	return nil
}

// RepriceGroup recomputes the group price from per-member base prices and
// records whether the group discount threshold was met.
func (s *Subscription) RepriceGroup(memberBasePrices []float64) (GroupPricing, error) {
	if s.group == nil {
		return GroupPricing{}, ErrNotGroup
	}

	pricing := PriceGroup(memberBasePrices, s.group)
	previousPrice := s.price
	s.price = pricing.DiscountedTotal
	s.group.Applied = pricing.DiscountApplied
	s.Touch()

	s.appendRecord(newChangeRecord(s.ID(), ChangePriceUpdate, "group repriced", "").
		withDelta("price", formatPrice(previousPrice), formatPrice(s.price)).
		withMeta("discount_applied", strconv.FormatBool(pricing.DiscountApplied)))
	return pricing, nil
}

// appendRecord appends an audit entry, trimming the oldest entries once the
// retention cap is exceeded.
func (s *Subscription) appendRecord(record *ChangeRecord) {
	s.history = append(s.history, record)
	if len(s.history) > historyRetentionLimit {
		s.history = s.history[len(s.history)-historyRetentionLimit:]
	}
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}
