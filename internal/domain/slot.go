package domain

import "time"

type SlotStatus string

const (
	SlotStatusFree      SlotStatus = "free"
	SlotStatusHeld      SlotStatus = "held"
	SlotStatusBooked    SlotStatus = "booked"
	SlotStatusCancelled SlotStatus = "cancelled"
)

// Slot is a bookable (resource, time) pair for one tenant. A held slot
// carries the claimant and a hold deadline; past the deadline it counts
// as free again.
type Slot struct {
	ID            string
	TenantID      string
	ResourceID    string
	StartTime     time.Time
	Status        SlotStatus
	HeldBy        string
	HoldExpiresAt *time.Time
	CreatedAt     time.Time
}

// HeldActive reports whether the slot is held and the hold has not lapsed.
func (s Slot) HeldActive(now time.Time) bool {
	return s.Status == SlotStatusHeld && s.HoldExpiresAt != nil && s.HoldExpiresAt.After(now)
}

type ClaimOutcome string

const (
	ClaimOutcomeSuccess  ClaimOutcome = "success"
	ClaimOutcomeConflict ClaimOutcome = "conflict"
)

// ClaimResult is the tagged result of a claim attempt. A conflict is an
// expected outcome, not an error: it carries the next free start times for
// the same resource so the agent can pivot in the same turn.
type ClaimResult struct {
	Outcome      ClaimOutcome
	Slot         Slot
	Alternatives []time.Time
}
