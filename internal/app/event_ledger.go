package app

import (
	"context"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
)

type EventLedgerRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	RecordIfNew(ctx context.Context, source, eventID string, now time.Time) (bool, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventLedger gives every inbound external event exactly one processing
// slot. RecordIfNew is atomic under concurrent redelivery; a losing caller
// treats the event as already handled.
type EventLedger struct {
	repo      EventLedgerRepository
	clock     clock.Clock
	retention time.Duration
}

const defaultEventRetention = 48 * time.Hour

func NewEventLedger(repo EventLedgerRepository, clk clock.Clock, opts ...EventLedgerOption) *EventLedger {
	l := &EventLedger{
		repo:      repo,
		clock:     clk,
		retention: defaultEventRetention,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

type EventLedgerOption func(*EventLedger)

// WithEventRetention overrides how long processed rows are kept.
func WithEventRetention(d time.Duration) EventLedgerOption {
	return func(l *EventLedger) {
		if d > 0 {
			l.retention = d
		}
	}
}

// WithTx exposes the ledger's transaction scope so the orchestrator can
// run an event's side effects atomically with its ledger row.
func (l *EventLedger) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return l.repo.WithTx(ctx, fn)
}

// RecordIfNew returns true when this caller is the first to see the event.
func (l *EventLedger) RecordIfNew(ctx context.Context, source, eventID string) (bool, error) {
	return l.repo.RecordIfNew(ctx, source, eventID, l.clock.Now())
}

// PurgeExpired removes ledger rows older than the retention window.
func (l *EventLedger) PurgeExpired(ctx context.Context) (int64, error) {
	cutoff := l.clock.Now().Add(-l.retention)
	return l.repo.PurgeOlderThan(ctx, cutoff)
}
