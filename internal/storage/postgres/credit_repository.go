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

type CreditRepository struct {
	pool *pgxpool.Pool
}

func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

func (r *CreditRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// AcquireTenantLock serializes every balance check-and-write for one
// tenant, so two concurrent reserves can never both pass a stale check.
func (r *CreditRepository) AcquireTenantLock(ctx context.Context, tenantID string) error {
	return acquireXactLock(ctx, advisoryLockKey("credit", tenantID))
}

func (r *CreditRepository) GetTenantForUpdate(ctx context.Context, tenantID string) (domain.Tenant, error) {
	const query = `
SELECT id, name, status, wallet_balance, rate_per_minute, created_at
FROM tenants
WHERE id = $1
FOR UPDATE`

	var t domain.Tenant
	var status string
	err := r.queryRow(ctx, query, tenantID).
		Scan(&t.ID, &t.Name, &status, &t.WalletBalance, &t.RatePerMinute, &t.CreatedAt)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Tenant{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Tenant{}, domain.ErrTenantNotFound
		}
		return domain.Tenant{}, fmt.Errorf("get tenant: %w", err)
	}
	t.Status = domain.TenantStatus(status)
	return t, nil
}

// SumActiveReservations totals the reserved amounts currently counting
// against the tenant's wallet. Reservations past their deadline count as
// released even before the sweep reaps them.
func (r *CreditRepository) SumActiveReservations(ctx context.Context, tenantID string, now time.Time) (int64, error) {
	const query = `
SELECT COALESCE(SUM(reserved_amount), 0)
FROM credit_reservations
WHERE tenant_id = $1 AND status = 'active' AND expires_at > $2`

	var total int64
	if err := r.queryRow(ctx, query, tenantID, now).Scan(&total); err != nil {
		if isInvalidUUID(err) {
			return 0, domain.ErrInvalidID
		}
		return 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return total, nil
}

const reservationColumns = `id, tenant_id, call_id, reserved_amount, committed_amount, status, created_at, expires_at, terminate_requested_at`

func (r *CreditRepository) CreateReservation(ctx context.Context, res domain.CreditReservation) error {
	const stmt = `
INSERT INTO credit_reservations (id, tenant_id, call_id, reserved_amount, committed_amount, status, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.TenantID,
		res.CallID,
		res.ReservedAmount,
		res.CommittedAmount,
		res.Status,
		res.CreatedAt,
		res.ExpiresAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrReservationExists
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *CreditRepository) GetReservationByCallID(ctx context.Context, callID string) (*domain.CreditReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM credit_reservations WHERE call_id = $1`

	res, err := r.scanReservation(r.queryRow(ctx, query, callID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation by call: %w", err)
	}
	return &res, nil
}

func (r *CreditRepository) GetReservationForUpdate(ctx context.Context, reservationID string) (domain.CreditReservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM credit_reservations WHERE id = $1 FOR UPDATE`

	res, err := r.scanReservation(r.queryRow(ctx, query, reservationID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.CreditReservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.CreditReservation{}, domain.ErrReservationNotFound
		}
		return domain.CreditReservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

func (r *CreditRepository) MarkCommitted(ctx context.Context, reservationID string, committedAmount int64) error {
	const stmt = `
UPDATE credit_reservations
SET status = 'committed', committed_amount = $2
WHERE id = $1 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, reservationID, committedAmount)
	if err != nil {
		return fmt.Errorf("mark committed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotActive
	}
	return nil
}

func (r *CreditRepository) MarkReleased(ctx context.Context, reservationID string) error {
	const stmt = `
UPDATE credit_reservations
SET status = 'released'
WHERE id = $1 AND status = 'active'`

	tag, err := r.exec(ctx, stmt, reservationID)
	if err != nil {
		return fmt.Errorf("mark released: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrReservationNotActive
	}
	return nil
}

// ExpireStale force-releases reservations past their deadline. The guard
// on expires_at makes concurrent sweep runs harmless.
func (r *CreditRepository) ExpireStale(ctx context.Context, now time.Time) ([]domain.CreditReservation, error) {
	stmt := `
UPDATE credit_reservations
SET status = 'expired'
WHERE status = 'active' AND expires_at <= $1
RETURNING ` + reservationColumns

	rows, err := r.query(ctx, stmt, now)
	if err != nil {
		return nil, fmt.Errorf("expire stale reservations: %w", err)
	}
	defer rows.Close()

	var out []domain.CreditReservation
	for rows.Next() {
		res, err := r.scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expired reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("expire stale reservations: %w", err)
	}
	return out, nil
}

// MarkTerminationRequested records (and on reissue, refreshes) the last
// time the kill switch asked the call platform to end this call.
func (r *CreditRepository) MarkTerminationRequested(ctx context.Context, reservationID string, at time.Time) error {
	const stmt = `
UPDATE credit_reservations
SET terminate_requested_at = $2
WHERE id = $1 AND status = 'active'`

	if _, err := r.exec(ctx, stmt, reservationID, at); err != nil {
		return fmt.Errorf("mark termination requested: %w", err)
	}
	return nil
}

// ExhaustedCalls lists active calls whose tenant has spendable balance at
// or below zero.
func (r *CreditRepository) ExhaustedCalls(ctx context.Context, now time.Time) ([]domain.ExhaustedCall, error) {
	const query = `
SELECT r.tenant_id, r.call_id, r.id, t.wallet_balance - held.total AS spendable
FROM credit_reservations r
JOIN tenants t ON t.id = r.tenant_id
JOIN (
	SELECT tenant_id, SUM(reserved_amount) AS total
	FROM credit_reservations
	WHERE status = 'active' AND expires_at > $1
	GROUP BY tenant_id
) held ON held.tenant_id = r.tenant_id
WHERE r.status = 'active' AND r.expires_at > $1
  AND t.wallet_balance - held.total <= 0
ORDER BY r.created_at`

	rows, err := r.query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("exhausted calls: %w", err)
	}
	defer rows.Close()

	var out []domain.ExhaustedCall
	for rows.Next() {
		var ec domain.ExhaustedCall
		if err := rows.Scan(&ec.TenantID, &ec.CallID, &ec.ReservationID, &ec.Spendable); err != nil {
			return nil, fmt.Errorf("scan exhausted call: %w", err)
		}
		out = append(out, ec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exhausted calls: %w", err)
	}
	return out, nil
}

// InsertTransaction appends a ledger row. The partial unique index on
// debit call_ids turns a double-billing attempt into ErrAlreadyBilled.
func (r *CreditRepository) InsertTransaction(ctx context.Context, txn domain.CreditTransaction) error {
	const stmt = `
INSERT INTO credit_transactions (id, tenant_id, call_id, amount, type, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, txn.ID, txn.TenantID, txn.CallID, txn.Amount, txn.Type, txn.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyBilled
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (r *CreditRepository) GetDebitByCallID(ctx context.Context, callID string) (*domain.CreditTransaction, error) {
	const query = `
SELECT id, tenant_id, call_id, amount, type, created_at
FROM credit_transactions
WHERE call_id = $1 AND type = 'debit'`

	var txn domain.CreditTransaction
	var typ string
	err := r.queryRow(ctx, query, callID).
		Scan(&txn.ID, &txn.TenantID, &txn.CallID, &txn.Amount, &typ, &txn.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get debit by call: %w", err)
	}
	txn.Type = domain.TransactionType(typ)
	return &txn, nil
}

func (r *CreditRepository) ListTransactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error) {
	const query = `
SELECT id, tenant_id, call_id, amount, type, created_at
FROM credit_transactions
WHERE tenant_id = $1
ORDER BY created_at DESC
LIMIT $2`

	rows, err := r.query(ctx, query, tenantID, limit)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []domain.CreditTransaction
	for rows.Next() {
		var txn domain.CreditTransaction
		var typ string
		if err := rows.Scan(&txn.ID, &txn.TenantID, &txn.CallID, &txn.Amount, &typ, &txn.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txn.Type = domain.TransactionType(typ)
		out = append(out, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// ApplyWalletDelta adjusts the wallet with a floor at zero. The guard is a
// backstop; callers hold the tenant advisory lock when it matters.
func (r *CreditRepository) ApplyWalletDelta(ctx context.Context, tenantID string, delta int64) error {
	const stmt = `
UPDATE tenants
SET wallet_balance = wallet_balance + $2
WHERE id = $1 AND wallet_balance + $2 >= 0`

	tag, err := r.exec(ctx, stmt, tenantID, delta)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("apply wallet delta: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.queryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tenants WHERE id = $1)`, tenantID).Scan(&exists); err != nil {
			return fmt.Errorf("check tenant: %w", err)
		}
		if !exists {
			return domain.ErrTenantNotFound
		}
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (r *CreditRepository) scanReservation(row pgx.Row) (domain.CreditReservation, error) {
	var res domain.CreditReservation
	var status string
	err := row.Scan(
		&res.ID,
		&res.TenantID,
		&res.CallID,
		&res.ReservedAmount,
		&res.CommittedAmount,
		&status,
		&res.CreatedAt,
		&res.ExpiresAt,
		&res.TerminateRequestedAt,
	)
	if err != nil {
		return domain.CreditReservation{}, err
	}
	res.Status = domain.ReservationStatus(status)
	return res, nil
}

func (r *CreditRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *CreditRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *CreditRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
