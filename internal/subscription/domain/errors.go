package domain

import "errors"

var (
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrInvalidSpec           = errors.New("invalid subscription spec")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrAlreadyTerminal       = errors.New("subscription is in a terminal state")
	ErrAlreadyFrozen         = errors.New("subscription is already frozen")
	ErrNotFrozen             = errors.New("subscription is not frozen")
	ErrInvalidRange          = errors.New("invalid date range")
	ErrInvalidDiscount       = errors.New("invalid discount value")
	ErrNoActiveDiscount      = errors.New("no active discount")
	ErrInsufficientSessions  = errors.New("insufficient sessions available")
	ErrNoSessionsAvailable   = errors.New("no sessions available to transfer")
	ErrNoSessionsOnPlan      = errors.New("plan has no session tracking")
	ErrTransferLimitExceeded = errors.New("transfer limit exceeded")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrNotGroup              = errors.New("subscription is not a group")
	ErrMemberNotFound        = errors.New("group member not found")
)
