package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// RecordIfNew inserts the (source, event_id) pair and reports whether this
// caller won. The primary key makes the race safe: under concurrent
// delivery exactly one insert succeeds, the rest see a unique violation.
func (r *EventRepository) RecordIfNew(ctx context.Context, source, eventID string, now time.Time) (bool, error) {
	const stmt = `
INSERT INTO processed_events (event_source, event_id, status, processed_at)
VALUES ($1, $2, $3, $4)`

	_, err := r.exec(ctx, stmt, source, eventID, domain.EventStatusProcessed, now)
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("record event: %w", err)
	}
	return true, nil
}

func (r *EventRepository) GetProcessedEvent(ctx context.Context, source, eventID string) (*domain.ProcessedEvent, error) {
	const query = `
SELECT event_source, event_id, status, processed_at
FROM processed_events
WHERE event_source = $1 AND event_id = $2`

	var ev domain.ProcessedEvent
	var status string
	err := r.queryRow(ctx, query, source, eventID).
		Scan(&ev.Source, &ev.EventID, &status, &ev.ProcessedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get processed event: %w", err)
	}
	ev.Status = domain.EventStatus(status)
	return &ev, nil
}

// PurgeOlderThan removes rows past the retention window. It never races
// with processing: anything it deletes is already outside the window any
// provider still redelivers within.
func (r *EventRepository) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const stmt = `DELETE FROM processed_events WHERE processed_at < $1`

	tag, err := r.exec(ctx, stmt, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge processed events: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *EventRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *EventRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
