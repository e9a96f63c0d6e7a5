package app

import (
	"context"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

type TenantRepository interface {
	CreateTenant(ctx context.Context, t domain.Tenant) error
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
}

// ProvisionService creates tenants so top-ups and calls have a subject.
// The dashboard's richer tenant management lives outside this core.
type ProvisionService struct {
	repo        TenantRepository
	clock       clock.Clock
	defaultRate int64
}

func NewProvisionService(repo TenantRepository, clk clock.Clock, defaultRatePerMinute int64) *ProvisionService {
	return &ProvisionService{
		repo:        repo,
		clock:       clk,
		defaultRate: defaultRatePerMinute,
	}
}

type CreateTenantInput struct {
	Name          string
	RatePerMinute int64
}

func (s *ProvisionService) CreateTenant(ctx context.Context, in CreateTenantInput) (domain.Tenant, error) {
	if in.Name == "" {
		return domain.Tenant{}, domain.ErrTenantNameRequired
	}
	rate := in.RatePerMinute
	if rate <= 0 {
		rate = s.defaultRate
	}

	tenant := domain.Tenant{
		ID:            newID(),
		Name:          in.Name,
		Status:        domain.TenantStatusActive,
		RatePerMinute: rate,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.repo.CreateTenant(ctx, tenant); err != nil {
		return domain.Tenant{}, err
	}
	return tenant, nil
}

func (s *ProvisionService) GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error) {
	if tenantID == "" {
		return domain.Tenant{}, domain.ErrInvalidID
	}
	return s.repo.GetTenant(ctx, tenantID)
}
