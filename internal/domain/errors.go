package domain

import "errors"

var (
	ErrTenantNotFound       = errors.New("tenant not found")
	ErrTenantExists         = errors.New("tenant already exists")
	ErrSlotNotFound         = errors.New("slot not found")
	ErrSlotTaken            = errors.New("slot already claimed")
	ErrSlotNotHeld          = errors.New("slot not held")
	ErrHoldExpired          = errors.New("hold expired")
	ErrNotClaimant          = errors.New("claimant does not own this hold")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrReservationNotActive = errors.New("reservation not active")
	ErrReservationExists    = errors.New("reservation already exists for call")
	ErrAlreadyBilled        = errors.New("call already billed")
	ErrDuplicateEvent       = errors.New("event already processed")
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidID            = errors.New("invalid id")
	ErrCallIDRequired       = errors.New("call id required")
	ErrClaimantRequired     = errors.New("claimant required")
	ErrEventIDRequired      = errors.New("event id required")
	ErrTenantNameRequired   = errors.New("tenant name required")
)
