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

type SlotRepository struct {
	pool *pgxpool.Pool
}

func NewSlotRepository(pool *pgxpool.Pool) *SlotRepository {
	return &SlotRepository{pool: pool}
}

func (r *SlotRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// AcquireClaimLock serializes all claimants for one (tenant, resource,
// start) key, including claims for keys with no row yet. Transaction
// scoped; released at commit or rollback.
func (r *SlotRepository) AcquireClaimLock(ctx context.Context, tenantID, resourceID string, startTime time.Time) error {
	key := advisoryLockKey("slot", tenantID, resourceID, fmt.Sprintf("%d", startTime.Unix()))
	return acquireXactLock(ctx, key)
}

const slotColumns = `id, tenant_id, resource_id, start_time, status, held_by, hold_expires_at, created_at`

// FindActiveSlotForKey returns the held or booked row for the key, if any.
func (r *SlotRepository) FindActiveSlotForKey(ctx context.Context, tenantID, resourceID string, startTime time.Time) (*domain.Slot, error) {
	query := `
SELECT ` + slotColumns + `
FROM appointment_slots
WHERE tenant_id = $1 AND resource_id = $2 AND start_time = $3 AND status IN ('held', 'booked')
FOR UPDATE`

	slot, err := r.scanSlot(r.queryRow(ctx, query, tenantID, resourceID, startTime))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active slot: %w", err)
	}
	return &slot, nil
}

// FindFreeSlotForKey returns the free row for the key, if the calendar has
// materialized one.
func (r *SlotRepository) FindFreeSlotForKey(ctx context.Context, tenantID, resourceID string, startTime time.Time) (*domain.Slot, error) {
	query := `
SELECT ` + slotColumns + `
FROM appointment_slots
WHERE tenant_id = $1 AND resource_id = $2 AND start_time = $3 AND status = 'free'
FOR UPDATE`

	slot, err := r.scanSlot(r.queryRow(ctx, query, tenantID, resourceID, startTime))
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find free slot: %w", err)
	}
	return &slot, nil
}

func (r *SlotRepository) GetSlotForUpdate(ctx context.Context, slotID string) (domain.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM appointment_slots WHERE id = $1 FOR UPDATE`

	slot, err := r.scanSlot(r.queryRow(ctx, query, slotID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Slot{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Slot{}, domain.ErrSlotNotFound
		}
		return domain.Slot{}, fmt.Errorf("get slot: %w", err)
	}
	return slot, nil
}

// InsertSlot writes a new slot row. The partial unique index on active
// statuses turns a lost race into domain.ErrSlotTaken.
func (r *SlotRepository) InsertSlot(ctx context.Context, slot domain.Slot) error {
	const stmt = `
INSERT INTO appointment_slots (id, tenant_id, resource_id, start_time, status, held_by, hold_expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		slot.ID,
		slot.TenantID,
		slot.ResourceID,
		slot.StartTime,
		slot.Status,
		slot.HeldBy,
		slot.HoldExpiresAt,
		slot.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSlotTaken
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}

// MarkHeld claims an existing free (or lapsed-hold) row.
func (r *SlotRepository) MarkHeld(ctx context.Context, slotID, claimant string, holdExpiresAt time.Time) error {
	const stmt = `
UPDATE appointment_slots
SET status = 'held', held_by = $2, hold_expires_at = $3
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, slotID, claimant, holdExpiresAt)
	if err != nil {
		return fmt.Errorf("mark held: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

func (r *SlotRepository) MarkBooked(ctx context.Context, slotID string) error {
	const stmt = `
UPDATE appointment_slots
SET status = 'booked', hold_expires_at = NULL
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, slotID)
	if err != nil {
		return fmt.Errorf("mark booked: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// MarkFree returns a held slot to the pool (explicit cancel of a hold).
func (r *SlotRepository) MarkFree(ctx context.Context, slotID string) error {
	const stmt = `
UPDATE appointment_slots
SET status = 'free', held_by = '', hold_expires_at = NULL
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, slotID)
	if err != nil {
		return fmt.Errorf("mark free: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// MarkCancelled ends a booked slot's lifecycle.
func (r *SlotRepository) MarkCancelled(ctx context.Context, slotID string) error {
	const stmt = `
UPDATE appointment_slots
SET status = 'cancelled', hold_expires_at = NULL
WHERE id = $1`

	tag, err := r.exec(ctx, stmt, slotID)
	if err != nil {
		return fmt.Errorf("mark cancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSlotNotFound
	}
	return nil
}

// FreeAlternatives lists the next start times a conflicted claimant can
// pivot to: free rows plus holds that have lapsed.
func (r *SlotRepository) FreeAlternatives(ctx context.Context, tenantID, resourceID string, after, now time.Time, limit int) ([]time.Time, error) {
	const query = `
SELECT start_time
FROM appointment_slots
WHERE tenant_id = $1 AND resource_id = $2 AND start_time > $3
  AND (status = 'free' OR (status = 'held' AND hold_expires_at <= $4))
ORDER BY start_time
LIMIT $5`

	rows, err := r.query(ctx, query, tenantID, resourceID, after, now, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("free alternatives: %w", err)
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan alternative: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("free alternatives: %w", err)
	}
	return out, nil
}

// ReleaseExpiredHolds flips lapsed holds back to free. Idempotent; safe to
// run from any number of replicas.
func (r *SlotRepository) ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	const stmt = `
UPDATE appointment_slots
SET status = 'free', held_by = '', hold_expires_at = NULL
WHERE status = 'held' AND hold_expires_at <= $1`

	tag, err := r.exec(ctx, stmt, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *SlotRepository) scanSlot(row pgx.Row) (domain.Slot, error) {
	var s domain.Slot
	var status string
	err := row.Scan(&s.ID, &s.TenantID, &s.ResourceID, &s.StartTime, &status, &s.HeldBy, &s.HoldExpiresAt, &s.CreatedAt)
	if err != nil {
		return domain.Slot{}, err
	}
	s.Status = domain.SlotStatus(status)
	return s, nil
}

func (r *SlotRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *SlotRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *SlotRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
