package domain

import "time"

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
)

// Tenant is a clinic on the platform. WalletBalance and RatePerMinute are
// integer minor currency units; balance math never touches floats.
type Tenant struct {
	ID            string
	Name          string
	Status        TenantStatus
	WalletBalance int64
	RatePerMinute int64
	CreatedAt     time.Time
}

// BalanceSummary is the derived view of a tenant's funds. Spendable is
// always computed inside a transaction, never cached across requests.
type BalanceSummary struct {
	TenantID  string
	Wallet    int64
	Reserved  int64
	Spendable int64
}
