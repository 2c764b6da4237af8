package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionLedger tracks the session counts of the current billing cycle.
// Available sessions are always derived from the other counters:
//
//	available = included + adjustment + bonus + transferredIn - transferredOut - used
//
// clamped to zero. Counters reset when a new cycle begins; lifetime totals
// live in the audit trail.
type SessionLedger struct {
	included         int
	adjustment       int // signed, applied immediately
	stagedAdjustment int // signed, applied at the next renewal
	bonus            int
	used             int
	transferredIn    int
	transferredOut   int
}

// NewSessionLedger creates a ledger for a cycle with the given included count.
func NewSessionLedger(included int) *SessionLedger {
	return &SessionLedger{included: included}
}

// RehydrateSessionLedger recreates a ledger from persisted counters.
func RehydrateSessionLedger(included, adjustment, stagedAdjustment, bonus, used, transferredIn, transferredOut int) *SessionLedger {
	return &SessionLedger{
		included:         included,
		adjustment:       adjustment,
		stagedAdjustment: stagedAdjustment,
		bonus:            bonus,
		used:             used,
		transferredIn:    transferredIn,
		transferredOut:   transferredOut,
	}
}

func (l *SessionLedger) Included() int         { return l.included }
func (l *SessionLedger) Adjustment() int       { return l.adjustment }
func (l *SessionLedger) StagedAdjustment() int { return l.stagedAdjustment }
func (l *SessionLedger) Bonus() int            { return l.bonus }
func (l *SessionLedger) Used() int             { return l.used }
func (l *SessionLedger) TransferredIn() int    { return l.transferredIn }
func (l *SessionLedger) TransferredOut() int   { return l.transferredOut }

// Available returns the sessions left in the current cycle, never negative.
func (l *SessionLedger) Available() int {
	available := l.included + l.adjustment + l.bonus + l.transferredIn - l.transferredOut - l.used
	if available < 0 {
		return 0
	}
	return available
}

// raw returns the unclamped balance, used to detect saturation.
func (l *SessionLedger) raw() int {
	return l.included + l.adjustment + l.bonus + l.transferredIn - l.transferredOut - l.used
}

// beginCycle resets per-cycle counters for a renewal. The staged adjustment
// becomes the new cycle's active adjustment and transferredIn receives the
// sessions carried over from applied transfers.
func (l *SessionLedger) beginCycle(included, carriedIn int) {
	l.included = included
	l.adjustment = l.stagedAdjustment
	l.stagedAdjustment = 0
	l.bonus = 0
	l.used = 0
	l.transferredIn = carriedIn
	l.transferredOut = 0
}

// SessionTransfer moves unused sessions from one billing period to another.
// The sessions leave the source cycle immediately; Applied flips to true only
// when the destination cycle's renewal consumes the transfer.
type SessionTransfer struct {
	ID                uuid.UUID `json:"id"`
	SourcePeriod      string    `json:"source_period"`
	DestinationPeriod string    `json:"destination_period"`
	Sessions          int       `json:"sessions"`
	AvailableBefore   int       `json:"available_before"`
	AvailableAfter    int       `json:"available_after"`
	TransferredAt     time.Time `json:"transferred_at"`
	Applied           bool      `json:"applied"`
}
