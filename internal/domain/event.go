package domain

import "time"

// Event sources, one per external collaborator. The (source, event_id)
// pair is the idempotency key for every inbound notification.
const (
	EventSourceCallPlatform = "vapi"
	EventSourcePayments     = "stripe"
	EventSourceMessaging    = "twilio"
)

type EventStatus string

const (
	EventStatusProcessed EventStatus = "processed"
)

// ProcessedEvent records one inbound external event. Rows are write-once
// and purged by age only.
type ProcessedEvent struct {
	Source      string
	EventID     string
	Status      EventStatus
	ProcessedAt time.Time
}
