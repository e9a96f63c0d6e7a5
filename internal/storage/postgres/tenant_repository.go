package postgres

import (
	"context"
	"fmt"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TenantRepository struct {
	pool *pgxpool.Pool
}

func NewTenantRepository(pool *pgxpool.Pool) *TenantRepository {
	return &TenantRepository{pool: pool}
}

func (r *TenantRepository) CreateTenant(ctx context.Context, t domain.Tenant) error {
	const stmt = `
INSERT INTO tenants (id, name, status, wallet_balance, rate_per_minute, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.exec(ctx, stmt, t.ID, t.Name, t.Status, t.WalletBalance, t.RatePerMinute, t.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrTenantExists
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	const query = `
SELECT id, name, status, wallet_balance, rate_per_minute, created_at
FROM tenants
WHERE id = $1`

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

func (r *TenantRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *TenantRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
