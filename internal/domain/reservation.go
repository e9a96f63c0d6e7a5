package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusActive    ReservationStatus = "active"
	ReservationStatusCommitted ReservationStatus = "committed"
	ReservationStatusReleased  ReservationStatus = "released"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// CreditReservation is a hold against a tenant's wallet sized to the
// worst-case cost of one call. ReservedAmount counts against spendable
// balance while the reservation is active; CallID is unique so a call can
// never carry two holds.
type CreditReservation struct {
	ID                   string
	TenantID             string
	CallID               string
	ReservedAmount       int64
	CommittedAmount      int64
	Status               ReservationStatus
	CreatedAt            time.Time
	ExpiresAt            time.Time
	TerminateRequestedAt *time.Time
}

// ExhaustedCall identifies an in-flight call whose tenant has no spendable
// balance left. Spendable may be negative by at most one reservation
// ceiling; the kill switch acts on anything at or below zero.
type ExhaustedCall struct {
	TenantID      string
	CallID        string
	ReservationID string
	Spendable     int64
}
