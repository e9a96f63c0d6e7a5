package app

import (
	"context"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

type SlotRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AcquireClaimLock(ctx context.Context, tenantID, resourceID string, startTime time.Time) error
	FindActiveSlotForKey(ctx context.Context, tenantID, resourceID string, startTime time.Time) (*domain.Slot, error)
	FindFreeSlotForKey(ctx context.Context, tenantID, resourceID string, startTime time.Time) (*domain.Slot, error)
	GetSlotForUpdate(ctx context.Context, slotID string) (domain.Slot, error)
	InsertSlot(ctx context.Context, slot domain.Slot) error
	MarkHeld(ctx context.Context, slotID, claimant string, holdExpiresAt time.Time) error
	MarkBooked(ctx context.Context, slotID string) error
	MarkFree(ctx context.Context, slotID string) error
	MarkCancelled(ctx context.Context, slotID string) error
	FreeAlternatives(ctx context.Context, tenantID, resourceID string, after, now time.Time, limit int) ([]time.Time, error)
	ReleaseExpiredHolds(ctx context.Context, now time.Time) (int64, error)
}

// SlotService enforces at most one active claim per (tenant, resource,
// start) key. All claim work happens under a per-key advisory lock inside
// one short transaction; no lock survives the call.
type SlotService struct {
	repo         SlotRepository
	clock        clock.Clock
	holdTTL      time.Duration
	alternatives int
}

const (
	defaultHoldTTL      = 15 * time.Minute
	defaultAlternatives = 3
)

func NewSlotService(repo SlotRepository, clk clock.Clock, opts ...SlotServiceOption) *SlotService {
	svc := &SlotService{
		repo:         repo,
		clock:        clk,
		holdTTL:      defaultHoldTTL,
		alternatives: defaultAlternatives,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type SlotServiceOption func(*SlotService)

// WithHoldTTL overrides the default TTL for new holds.
func WithHoldTTL(d time.Duration) SlotServiceOption {
	return func(s *SlotService) {
		if d > 0 {
			s.holdTTL = d
		}
	}
}

// WithAlternativeCount overrides how many free start times a conflict
// response carries.
func WithAlternativeCount(n int) SlotServiceOption {
	return func(s *SlotService) {
		if n > 0 {
			s.alternatives = n
		}
	}
}

type ClaimSlotInput struct {
	TenantID   string
	ResourceID string
	StartTime  time.Time
	Claimant   string
}

// ClaimSlot attempts to hold the slot for the claimant. Among N concurrent
// claimants for one key exactly one succeeds; the rest get a conflict
// result carrying the next free start times for the same resource.
func (s *SlotService) ClaimSlot(ctx context.Context, in ClaimSlotInput) (domain.ClaimResult, error) {
	if in.TenantID == "" || in.ResourceID == "" {
		return domain.ClaimResult{}, domain.ErrInvalidID
	}
	if in.Claimant == "" {
		return domain.ClaimResult{}, domain.ErrClaimantRequired
	}

	now := s.clock.Now()
	var result domain.ClaimResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.AcquireClaimLock(txCtx, in.TenantID, in.ResourceID, in.StartTime); err != nil {
			return err
		}

		active, err := s.repo.FindActiveSlotForKey(txCtx, in.TenantID, in.ResourceID, in.StartTime)
		if err != nil {
			return err
		}
		if active != nil {
			// A lapsed hold counts as free and can be taken over in place.
			if active.Status == domain.SlotStatusHeld && !active.HeldActive(now) {
				return s.takeOver(txCtx, active, in, now, &result)
			}
			if active.Status == domain.SlotStatusHeld && active.HeldBy == in.Claimant {
				result = domain.ClaimResult{Outcome: domain.ClaimOutcomeSuccess, Slot: *active}
				return nil
			}
			return s.conflict(txCtx, in, now, &result)
		}

		free, err := s.repo.FindFreeSlotForKey(txCtx, in.TenantID, in.ResourceID, in.StartTime)
		if err != nil {
			return err
		}
		if free != nil {
			return s.takeOver(txCtx, free, in, now, &result)
		}

		// No row for the key yet; materialize the hold directly. The
		// advisory lock already serialized us, the partial unique index is
		// only a backstop.
		slot := domain.Slot{
			ID:         newID(),
			TenantID:   in.TenantID,
			ResourceID: in.ResourceID,
			StartTime:  in.StartTime,
			Status:     domain.SlotStatusHeld,
			HeldBy:     in.Claimant,
			CreatedAt:  now,
		}
		expiry := now.Add(s.holdTTL)
		slot.HoldExpiresAt = &expiry

		if err := s.repo.InsertSlot(txCtx, slot); err != nil {
			if err == domain.ErrSlotTaken {
				return s.conflict(txCtx, in, now, &result)
			}
			return err
		}
		result = domain.ClaimResult{Outcome: domain.ClaimOutcomeSuccess, Slot: slot}
		return nil
	})
	if err != nil {
		return domain.ClaimResult{}, err
	}
	return result, nil
}

func (s *SlotService) takeOver(ctx context.Context, slot *domain.Slot, in ClaimSlotInput, now time.Time, result *domain.ClaimResult) error {
	expiry := now.Add(s.holdTTL)
	if err := s.repo.MarkHeld(ctx, slot.ID, in.Claimant, expiry); err != nil {
		return err
	}
	held := *slot
	held.Status = domain.SlotStatusHeld
	held.HeldBy = in.Claimant
	held.HoldExpiresAt = &expiry
	*result = domain.ClaimResult{Outcome: domain.ClaimOutcomeSuccess, Slot: held}
	return nil
}

func (s *SlotService) conflict(ctx context.Context, in ClaimSlotInput, now time.Time, result *domain.ClaimResult) error {
	alts, err := s.repo.FreeAlternatives(ctx, in.TenantID, in.ResourceID, in.StartTime, now, s.alternatives)
	if err != nil {
		return err
	}
	*result = domain.ClaimResult{Outcome: domain.ClaimOutcomeConflict, Alternatives: alts}
	return nil
}

type ConfirmSlotInput struct {
	SlotID   string
	Claimant string
}

// ConfirmSlot promotes a live hold to booked. Only the claimant that holds
// the slot may confirm it, and a lapsed hold cannot be confirmed.
func (s *SlotService) ConfirmSlot(ctx context.Context, in ConfirmSlotInput) (domain.Slot, error) {
	if in.Claimant == "" {
		return domain.Slot{}, domain.ErrClaimantRequired
	}

	now := s.clock.Now()
	var result domain.Slot

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := s.repo.GetSlotForUpdate(txCtx, in.SlotID)
		if err != nil {
			return err
		}
		if slot.Status == domain.SlotStatusBooked {
			if slot.HeldBy == in.Claimant {
				result = slot
				return nil
			}
			return domain.ErrSlotTaken
		}
		if slot.Status != domain.SlotStatusHeld {
			return domain.ErrSlotNotHeld
		}
		if !slot.HeldActive(now) {
			return domain.ErrHoldExpired
		}
		if slot.HeldBy != in.Claimant {
			return domain.ErrNotClaimant
		}

		if err := s.repo.MarkBooked(txCtx, slot.ID); err != nil {
			return err
		}
		slot.Status = domain.SlotStatusBooked
		slot.HoldExpiresAt = nil
		result = slot
		return nil
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return result, nil
}

type CancelSlotInput struct {
	SlotID   string
	Claimant string
}

// CancelSlot releases a hold back to free, or ends a booking. Cancelling
// an already-free slot is a safe no-op.
func (s *SlotService) CancelSlot(ctx context.Context, in CancelSlotInput) (domain.Slot, error) {
	if in.Claimant == "" {
		return domain.Slot{}, domain.ErrClaimantRequired
	}

	var result domain.Slot

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		slot, err := s.repo.GetSlotForUpdate(txCtx, in.SlotID)
		if err != nil {
			return err
		}
		switch slot.Status {
		case domain.SlotStatusFree, domain.SlotStatusCancelled:
			result = slot
			return nil
		case domain.SlotStatusHeld:
			if slot.HeldBy != in.Claimant {
				return domain.ErrNotClaimant
			}
			if err := s.repo.MarkFree(txCtx, slot.ID); err != nil {
				return err
			}
			slot.Status = domain.SlotStatusFree
			slot.HeldBy = ""
			slot.HoldExpiresAt = nil
		case domain.SlotStatusBooked:
			if slot.HeldBy != in.Claimant {
				return domain.ErrNotClaimant
			}
			if err := s.repo.MarkCancelled(txCtx, slot.ID); err != nil {
				return err
			}
			slot.Status = domain.SlotStatusCancelled
			slot.HoldExpiresAt = nil
		}
		result = slot
		return nil
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return result, nil
}

type SeedSlotInput struct {
	TenantID   string
	ResourceID string
	StartTime  time.Time
}

// SeedSlot materializes a free slot from the calendar collaborator.
// Seeding a key that already has a live row is reported as ErrSlotTaken.
func (s *SlotService) SeedSlot(ctx context.Context, in SeedSlotInput) (domain.Slot, error) {
	if in.TenantID == "" || in.ResourceID == "" {
		return domain.Slot{}, domain.ErrInvalidID
	}

	slot := domain.Slot{
		ID:         newID(),
		TenantID:   in.TenantID,
		ResourceID: in.ResourceID,
		StartTime:  in.StartTime,
		Status:     domain.SlotStatusFree,
		CreatedAt:  s.clock.Now(),
	}
	if err := s.repo.InsertSlot(ctx, slot); err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// ReleaseExpiredHolds is the sweep entry point: lapsed holds go back to
// free so the key is claimable without waiting for a new claimant to take
// the row over.
func (s *SlotService) ReleaseExpiredHolds(ctx context.Context) (int64, error) {
	return s.repo.ReleaseExpiredHolds(ctx, s.clock.Now())
}
