// Package domain computes engagement metrics and risk classifications from a
// subscription's usage, attendance, and payment history. The computation is
// read-only and never touches subscription state.
package domain

import "time"

// RiskLevel classifies a customer's churn risk.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// History is the raw input to the scorer: session and payment counts over a
// trailing three-cycle window.
type History struct {
	IncludedSessions  int
	UsedSessions      int
	ScheduledSessions int
	AttendedSessions  int
	CancelledSessions int
	NoShowSessions    int
	OnTimePayments    int
	LatePayments      int
	FailedPayments    int
	LastSessionAt     *time.Time
}

// Metric is the derived engagement snapshot for one subscription. It is
// computed on demand and never persisted.
type Metric struct {
	UsageRate              float64   `json:"usage_rate"`
	AttendanceRate         float64   `json:"attendance_rate"`
	PaymentPunctualityRate float64   `json:"payment_punctuality_rate"`
	DaysSinceLastSession   int       `json:"days_since_last_session"`
	CompositeScore         int       `json:"composite_score"`
	RiskLevel              RiskLevel `json:"risk_level"`
	RiskFactors            []string  `json:"risk_factors"`
}

// noSessionEver stands in for the days-since figure when the customer never
// recorded a session, so staleness penalties apply.
const noSessionEver = 9999

// Compute scores a history snapshot. The score starts at 50 and moves with
// usage, attendance, payment punctuality, and recency; the result is clamped
// to [0,100]. Rates with no underlying events (no scheduled sessions, no
// payments) are treated as neutral rather than as zero.
func Compute(h History, today time.Time) Metric {
	m := Metric{
		UsageRate:              rate(h.UsedSessions, h.IncludedSessions),
		AttendanceRate:         rate(h.AttendedSessions, h.ScheduledSessions),
		PaymentPunctualityRate: rate(h.OnTimePayments, h.OnTimePayments+h.LatePayments+h.FailedPayments),
		DaysSinceLastSession:   noSessionEver,
		RiskFactors:            []string{},
	}
	if h.LastSessionAt != nil {
		days := int(today.Sub(*h.LastSessionAt).Hours() / 24)
		if days < 0 {
			days = 0
		}
		m.DaysSinceLastSession = days
	}

	score := 50

	if h.IncludedSessions > 0 {
		switch {
		case m.UsageRate > 0.8:
			score += 20
		case m.UsageRate < 0.3:
			score -= 20
			m.RiskFactors = append(m.RiskFactors, "low session usage")
		}
	}

	if h.ScheduledSessions > 0 {
		switch {
		case m.AttendanceRate > 0.9:
			score += 15
		case m.AttendanceRate < 0.5:
			score -= 15
			m.RiskFactors = append(m.RiskFactors, "low attendance")
		}
	}

	if h.OnTimePayments+h.LatePayments+h.FailedPayments > 0 && m.PaymentPunctualityRate > 0.9 {
		score += 15
	}
	if h.FailedPayments > 0 {
		score -= 15
		m.RiskFactors = append(m.RiskFactors, "failed payments")
	}
	if h.LatePayments > 2 {
		score -= 10
		m.RiskFactors = append(m.RiskFactors, "repeated late payments")
	}

	switch {
	case m.DaysSinceLastSession < 7:
		score += 10
	case m.DaysSinceLastSession > 30:
		score -= 20
		m.RiskFactors = append(m.RiskFactors, "no recent activity")
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	m.CompositeScore = score
	m.RiskLevel = riskFor(score)
	return m
}

func riskFor(score int) RiskLevel {
	switch {
	case score < 30:
		return RiskCritical
	case score < 50:
		return RiskHigh
	case score < 70:
		return RiskMedium
	default:
		return RiskLow
	}
}

func rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total)
}
