package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedger_AvailableFormula(t *testing.T) {
	l := RehydrateSessionLedger(8, 2, 0, 1, 4, 3, 2)
	// 8 + 2 + 1 + 3 - 2 - 4 = 8
	assert.Equal(t, 8, l.Available())
}

func TestLedger_AvailableClampsAtZero(t *testing.T) {
	l := RehydrateSessionLedger(4, -10, 0, 0, 0, 0, 0)
	assert.Equal(t, 0, l.Available())
	assert.Equal(t, -6, l.raw())
}

func TestLedger_BeginCycle(t *testing.T) {
	l := RehydrateSessionLedger(8, 1, 3, 2, 6, 0, 2)
	l.beginCycle(12, 2)

	assert.Equal(t, 12, l.Included())
	assert.Equal(t, 3, l.Adjustment(), "staged adjustment becomes active")
	assert.Equal(t, 0, l.StagedAdjustment())
	assert.Equal(t, 0, l.Bonus())
	assert.Equal(t, 0, l.Used())
	assert.Equal(t, 2, l.TransferredIn())
	assert.Equal(t, 0, l.TransferredOut())
	assert.Equal(t, 17, l.Available())
}

func TestRecordUsage(t *testing.T) {
	sub := newActive(t)

	require.NoError(t, sub.RecordUsage(3))
	assert.Equal(t, 5, sub.AvailableSessions())
	assert.Equal(t, 3, sub.Ledger().Used())
}

func TestRecordUsage_Insufficient(t *testing.T) {
	sub := newActive(t)

	err := sub.RecordUsage(9)
	assert.ErrorIs(t, err, ErrInsufficientSessions)
	assert.Equal(t, 8, sub.AvailableSessions(), "rejected usage does not mutate")
}

func TestRecordUsage_InvalidCount(t *testing.T) {
	sub := newActive(t)
	assert.ErrorIs(t, sub.RecordUsage(0), ErrInvalidAmount)
	assert.ErrorIs(t, sub.RecordUsage(-2), ErrInvalidAmount)
}

func TestAdjustSessions_Immediate(t *testing.T) {
	sub := newActive(t)

	clamped, err := sub.AdjustSessions(-3, "billing correction", true)
	require.NoError(t, err)
	assert.False(t, clamped)
	assert.Equal(t, 5, sub.AvailableSessions())
}

func TestAdjustSessions_ClampReported(t *testing.T) {
	sub := newActive(t)

	clamped, err := sub.AdjustSessions(-12, "oversized correction", true)
	require.NoError(t, err, "saturation is reported, not an error")
	assert.True(t, clamped)
	assert.Equal(t, 0, sub.AvailableSessions())
}

func TestAdjustSessions_ZeroDelta(t *testing.T) {
	sub := newActive(t)
	_, err := sub.AdjustSessions(0, "", true)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestAddBonusSessions(t *testing.T) {
	sub := newActive(t)

	require.NoError(t, sub.AddBonusSessions(2, "referral reward"))
	assert.Equal(t, 10, sub.AvailableSessions())
	assert.Equal(t, 2, sub.Ledger().Bonus())

	assert.ErrorIs(t, sub.AddBonusSessions(0, ""), ErrInvalidAmount)
	assert.ErrorIs(t, sub.AddBonusSessions(-1, ""), ErrInvalidAmount)
}

func TestTransferSessions_ExplicitCount(t *testing.T) {
	sub := newActive(t)
	count := 3

	transfer, err := sub.TransferSessions(&count, "2025-01", "2025-02", 5)
	require.NoError(t, err)

	assert.Equal(t, 3, transfer.Sessions)
	assert.Equal(t, 8, transfer.AvailableBefore)
	assert.Equal(t, 5, transfer.AvailableAfter)
	assert.False(t, transfer.Applied)
	assert.Equal(t, 5, sub.AvailableSessions())
}

func TestTransferSessions_NilCountCappedSilently(t *testing.T) {
	sub := newActive(t)

	transfer, err := sub.TransferSessions(nil, "2025-01", "2025-02", 5)
	require.NoError(t, err)

	assert.Equal(t, 5, transfer.Sessions, "transfer-all is capped at the limit")
	assert.Equal(t, 3, sub.AvailableSessions())
}

func TestTransferSessions_ExplicitAboveCapRejected(t *testing.T) {
	sub := newActive(t)
	count := 8

	_, err := sub.TransferSessions(&count, "2025-01", "2025-02", 5)
	assert.ErrorIs(t, err, ErrTransferLimitExceeded)
	assert.Equal(t, 8, sub.AvailableSessions(), "rejected transfer does not mutate")
}

func TestTransferSessions_NoneAvailable(t *testing.T) {
	sub := newActive(t)
	require.NoError(t, sub.RecordUsage(8))

	_, err := sub.TransferSessions(nil, "2025-01", "2025-02", 5)
	assert.ErrorIs(t, err, ErrNoSessionsAvailable)
}

func TestTransferSessions_UnlimitedCap(t *testing.T) {
	sub := newActive(t)

	transfer, err := sub.TransferSessions(nil, "2025-01", "2025-02", 0)
	require.NoError(t, err)
	assert.Equal(t, 8, transfer.Sessions, "zero cap means no limit")
}

func TestLedgerInvariant_HoldsAcrossOperations(t *testing.T) {
	sub := newActive(t)

	checkInvariant := func() {
		l := sub.Ledger()
		expected := l.Included() + l.Adjustment() + l.Bonus() + l.TransferredIn() - l.TransferredOut() - l.Used()
		if expected < 0 {
			expected = 0
		}
		assert.Equal(t, expected, sub.AvailableSessions())
	}

	require.NoError(t, sub.RecordUsage(2))
	checkInvariant()
	require.NoError(t, sub.AddBonusSessions(3, ""))
	checkInvariant()
	_, err := sub.AdjustSessions(-1, "", true)
	require.NoError(t, err)
	checkInvariant()
	count := 2
	_, err = sub.TransferSessions(&count, "2025-01", "2025-02", 5)
	require.NoError(t, err)
	checkInvariant()
	require.NoError(t, sub.Renew(date(2025, time.February, 1)))
	checkInvariant()
}
