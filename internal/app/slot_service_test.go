package app

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

func TestSlotService_ClaimSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	start := time.Date(2026, 3, 3, 14, 0, 0, 0, time.UTC)
	ttl := 15 * time.Minute

	makeSvc := func(slots []domain.Slot) (*SlotService, *fakeSlotRepo) {
		repo := newFakeSlotRepo(slots)
		svc := NewSlotService(repo, clock.NewFixed(now), WithHoldTTL(ttl), WithAlternativeCount(3))
		return svc, repo
	}

	t.Run("claims a key with no row", func(t *testing.T) {
		svc, repo := makeSvc(nil)

		result, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
			Claimant:   "call-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != domain.ClaimOutcomeSuccess {
			t.Fatalf("expected success, got %s", result.Outcome)
		}
		if result.Slot.Status != domain.SlotStatusHeld {
			t.Fatalf("expected held, got %s", result.Slot.Status)
		}
		if result.Slot.HoldExpiresAt == nil || !result.Slot.HoldExpiresAt.Equal(now.Add(ttl)) {
			t.Fatalf("expected hold expiry %v, got %v", now.Add(ttl), result.Slot.HoldExpiresAt)
		}
		if len(repo.slots) != 1 {
			t.Fatalf("expected 1 slot in repo, got %d", len(repo.slots))
		}
	})

	t.Run("claims a free seeded slot in place", func(t *testing.T) {
		svc, repo := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusFree},
		})

		result, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
			Claimant:   "call-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != domain.ClaimOutcomeSuccess {
			t.Fatalf("expected success, got %s", result.Outcome)
		}
		if result.Slot.ID != "slot-1" {
			t.Fatalf("expected existing row claimed, got %s", result.Slot.ID)
		}
		if got := repo.slots[0]; got.Status != domain.SlotStatusHeld || got.HeldBy != "call-1" {
			t.Fatalf("expected repo row held by call-1, got %+v", got)
		}
	})

	t.Run("conflict on a live hold by someone else", func(t *testing.T) {
		expiry := now.Add(10 * time.Minute)
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
			{ID: "slot-2", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start.Add(time.Hour), Status: domain.SlotStatusFree},
			{ID: "slot-3", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start.Add(2 * time.Hour), Status: domain.SlotStatusFree},
		})

		result, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
			Claimant:   "call-2",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != domain.ClaimOutcomeConflict {
			t.Fatalf("expected conflict, got %s", result.Outcome)
		}
		if len(result.Alternatives) != 2 {
			t.Fatalf("expected 2 alternatives, got %d", len(result.Alternatives))
		}
		if !result.Alternatives[0].Equal(start.Add(time.Hour)) {
			t.Fatalf("expected nearest alternative first, got %v", result.Alternatives[0])
		}
	})

	t.Run("re-claim by the hold owner returns the same hold", func(t *testing.T) {
		expiry := now.Add(10 * time.Minute)
		svc, repo := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
		})

		result, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
			Claimant:   "call-1",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != domain.ClaimOutcomeSuccess {
			t.Fatalf("expected success, got %s", result.Outcome)
		}
		if result.Slot.ID != "slot-1" {
			t.Fatalf("expected same hold, got %s", result.Slot.ID)
		}
		if len(repo.slots) != 1 {
			t.Fatalf("expected repo unchanged, got %d slots", len(repo.slots))
		}
	})

	t.Run("takes over a lapsed hold", func(t *testing.T) {
		expiry := now.Add(-time.Minute)
		svc, repo := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
		})

		result, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
			Claimant:   "call-2",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != domain.ClaimOutcomeSuccess {
			t.Fatalf("expected success, got %s", result.Outcome)
		}
		if got := repo.slots[0]; got.HeldBy != "call-2" {
			t.Fatalf("expected takeover by call-2, got %+v", got)
		}
	})

	t.Run("conflict on a booked slot", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusBooked, HeldBy: "call-1"},
		})

		result, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
			Claimant:   "call-2",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result.Outcome != domain.ClaimOutcomeConflict {
			t.Fatalf("expected conflict, got %s", result.Outcome)
		}
	})

	t.Run("rejects missing claimant", func(t *testing.T) {
		svc, _ := makeSvc(nil)
		_, err := svc.ClaimSlot(context.Background(), ClaimSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
		})
		if err != domain.ErrClaimantRequired {
			t.Fatalf("expected ErrClaimantRequired, got %v", err)
		}
	})
}

func TestSlotService_ConfirmSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)

	makeSvc := func(slots []domain.Slot) (*SlotService, *fakeSlotRepo) {
		repo := newFakeSlotRepo(slots)
		return NewSlotService(repo, clock.NewFixed(now)), repo
	}

	t.Run("books a live hold", func(t *testing.T) {
		expiry := now.Add(5 * time.Minute)
		svc, repo := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
		})

		slot, err := svc.ConfirmSlot(context.Background(), ConfirmSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slot.Status != domain.SlotStatusBooked {
			t.Fatalf("expected booked, got %s", slot.Status)
		}
		if repo.slots[0].Status != domain.SlotStatusBooked {
			t.Fatalf("expected repo row booked, got %s", repo.slots[0].Status)
		}
	})

	t.Run("re-confirm by the booker is idempotent", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusBooked, HeldBy: "call-1"},
		})

		slot, err := svc.ConfirmSlot(context.Background(), ConfirmSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slot.Status != domain.SlotStatusBooked {
			t.Fatalf("expected booked, got %s", slot.Status)
		}
	})

	t.Run("rejects a lapsed hold", func(t *testing.T) {
		expiry := now.Add(-time.Second)
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
		})

		_, err := svc.ConfirmSlot(context.Background(), ConfirmSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != domain.ErrHoldExpired {
			t.Fatalf("expected ErrHoldExpired, got %v", err)
		}
	})

	t.Run("rejects a different claimant", func(t *testing.T) {
		expiry := now.Add(5 * time.Minute)
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
		})

		_, err := svc.ConfirmSlot(context.Background(), ConfirmSlotInput{SlotID: "slot-1", Claimant: "call-2"})
		if err != domain.ErrNotClaimant {
			t.Fatalf("expected ErrNotClaimant, got %v", err)
		}
	})

	t.Run("rejects a free slot", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusFree},
		})

		_, err := svc.ConfirmSlot(context.Background(), ConfirmSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != domain.ErrSlotNotHeld {
			t.Fatalf("expected ErrSlotNotHeld, got %v", err)
		}
	})

	t.Run("unknown slot", func(t *testing.T) {
		svc, _ := makeSvc(nil)
		_, err := svc.ConfirmSlot(context.Background(), ConfirmSlotInput{SlotID: "missing", Claimant: "call-1"})
		if err != domain.ErrSlotNotFound {
			t.Fatalf("expected ErrSlotNotFound, got %v", err)
		}
	})
}

func TestSlotService_CancelSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)

	makeSvc := func(slots []domain.Slot) (*SlotService, *fakeSlotRepo) {
		repo := newFakeSlotRepo(slots)
		return NewSlotService(repo, clock.NewFixed(now)), repo
	}

	t.Run("releases a hold back to free", func(t *testing.T) {
		expiry := now.Add(5 * time.Minute)
		svc, repo := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &expiry},
		})

		slot, err := svc.CancelSlot(context.Background(), CancelSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slot.Status != domain.SlotStatusFree {
			t.Fatalf("expected free, got %s", slot.Status)
		}
		if repo.slots[0].HeldBy != "" {
			t.Fatalf("expected claimant cleared, got %q", repo.slots[0].HeldBy)
		}
	})

	t.Run("cancels a booking", func(t *testing.T) {
		svc, repo := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusBooked, HeldBy: "call-1"},
		})

		slot, err := svc.CancelSlot(context.Background(), CancelSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slot.Status != domain.SlotStatusCancelled {
			t.Fatalf("expected cancelled, got %s", slot.Status)
		}
		if repo.slots[0].Status != domain.SlotStatusCancelled {
			t.Fatalf("expected repo row cancelled, got %s", repo.slots[0].Status)
		}
	})

	t.Run("cancelling a free slot is a no-op", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusFree},
		})

		slot, err := svc.CancelSlot(context.Background(), CancelSlotInput{SlotID: "slot-1", Claimant: "call-1"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slot.Status != domain.SlotStatusFree {
			t.Fatalf("expected free, got %s", slot.Status)
		}
	})

	t.Run("rejects a different claimant", func(t *testing.T) {
		svc, _ := makeSvc([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusBooked, HeldBy: "call-1"},
		})

		_, err := svc.CancelSlot(context.Background(), CancelSlotInput{SlotID: "slot-1", Claimant: "call-2"})
		if err != domain.ErrNotClaimant {
			t.Fatalf("expected ErrNotClaimant, got %v", err)
		}
	})
}

func TestSlotService_SeedSlot(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	start := now.Add(24 * time.Hour)

	t.Run("seeds a free slot", func(t *testing.T) {
		repo := newFakeSlotRepo(nil)
		svc := NewSlotService(repo, clock.NewFixed(now))

		slot, err := svc.SeedSlot(context.Background(), SeedSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if slot.Status != domain.SlotStatusFree {
			t.Fatalf("expected free, got %s", slot.Status)
		}
	})

	t.Run("duplicate key is rejected", func(t *testing.T) {
		repo := newFakeSlotRepo([]domain.Slot{
			{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: start, Status: domain.SlotStatusFree},
		})
		svc := NewSlotService(repo, clock.NewFixed(now))

		_, err := svc.SeedSlot(context.Background(), SeedSlotInput{
			TenantID:   "tenant-1",
			ResourceID: "dr-garcia",
			StartTime:  start,
		})
		if err != domain.ErrSlotTaken {
			t.Fatalf("expected ErrSlotTaken, got %v", err)
		}
	})
}

func TestSlotService_ReleaseExpiredHolds(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	lapsed := now.Add(-time.Minute)
	live := now.Add(time.Minute)

	repo := newFakeSlotRepo([]domain.Slot{
		{ID: "slot-1", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: now, Status: domain.SlotStatusHeld, HeldBy: "call-1", HoldExpiresAt: &lapsed},
		{ID: "slot-2", TenantID: "tenant-1", ResourceID: "dr-garcia", StartTime: now.Add(time.Hour), Status: domain.SlotStatusHeld, HeldBy: "call-2", HoldExpiresAt: &live},
	})
	svc := NewSlotService(repo, clock.NewFixed(now))

	n, err := svc.ReleaseExpiredHolds(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 released, got %d", n)
	}
	if repo.slots[0].Status != domain.SlotStatusFree {
		t.Fatalf("expected lapsed hold freed, got %s", repo.slots[0].Status)
	}
	if repo.slots[1].Status != domain.SlotStatusHeld {
		t.Fatalf("expected live hold untouched, got %s", repo.slots[1].Status)
	}
}

type fakeSlotRepo struct {
	slots []domain.Slot
	locks int
}

func newFakeSlotRepo(slots []domain.Slot) *fakeSlotRepo {
	return &fakeSlotRepo{slots: append([]domain.Slot{}, slots...)}
}

func (f *fakeSlotRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeSlotRepo) AcquireClaimLock(_ context.Context, _, _ string, _ time.Time) error {
	f.locks++
	return nil
}

func (f *fakeSlotRepo) FindActiveSlotForKey(_ context.Context, tenantID, resourceID string, startTime time.Time) (*domain.Slot, error) {
	for i := range f.slots {
		s := &f.slots[i]
		if s.TenantID == tenantID && s.ResourceID == resourceID && s.StartTime.Equal(startTime) &&
			(s.Status == domain.SlotStatusHeld || s.Status == domain.SlotStatusBooked) {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSlotRepo) FindFreeSlotForKey(_ context.Context, tenantID, resourceID string, startTime time.Time) (*domain.Slot, error) {
	for i := range f.slots {
		s := &f.slots[i]
		if s.TenantID == tenantID && s.ResourceID == resourceID && s.StartTime.Equal(startTime) &&
			s.Status == domain.SlotStatusFree {
			copied := *s
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeSlotRepo) GetSlotForUpdate(_ context.Context, slotID string) (domain.Slot, error) {
	for _, s := range f.slots {
		if s.ID == slotID {
			return s, nil
		}
	}
	return domain.Slot{}, domain.ErrSlotNotFound
}

func (f *fakeSlotRepo) InsertSlot(_ context.Context, slot domain.Slot) error {
	for _, s := range f.slots {
		if s.TenantID == slot.TenantID && s.ResourceID == slot.ResourceID && s.StartTime.Equal(slot.StartTime) &&
			s.Status != domain.SlotStatusCancelled {
			return domain.ErrSlotTaken
		}
	}
	f.slots = append(f.slots, slot)
	return nil
}

func (f *fakeSlotRepo) MarkHeld(_ context.Context, slotID, claimant string, holdExpiresAt time.Time) error {
	return f.update(slotID, func(s *domain.Slot) {
		s.Status = domain.SlotStatusHeld
		s.HeldBy = claimant
		expiry := holdExpiresAt
		s.HoldExpiresAt = &expiry
	})
}

func (f *fakeSlotRepo) MarkBooked(_ context.Context, slotID string) error {
	return f.update(slotID, func(s *domain.Slot) {
		s.Status = domain.SlotStatusBooked
		s.HoldExpiresAt = nil
	})
}

func (f *fakeSlotRepo) MarkFree(_ context.Context, slotID string) error {
	return f.update(slotID, func(s *domain.Slot) {
		s.Status = domain.SlotStatusFree
		s.HeldBy = ""
		s.HoldExpiresAt = nil
	})
}

func (f *fakeSlotRepo) MarkCancelled(_ context.Context, slotID string) error {
	return f.update(slotID, func(s *domain.Slot) {
		s.Status = domain.SlotStatusCancelled
		s.HoldExpiresAt = nil
	})
}

func (f *fakeSlotRepo) FreeAlternatives(_ context.Context, tenantID, resourceID string, after, now time.Time, limit int) ([]time.Time, error) {
	var out []time.Time
	for _, s := range f.slots {
		if s.TenantID != tenantID || s.ResourceID != resourceID || !s.StartTime.After(after) {
			continue
		}
		free := s.Status == domain.SlotStatusFree ||
			(s.Status == domain.SlotStatusHeld && !s.HeldActive(now))
		if free {
			out = append(out, s.StartTime)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSlotRepo) ReleaseExpiredHolds(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for i := range f.slots {
		s := &f.slots[i]
		if s.Status == domain.SlotStatusHeld && !s.HeldActive(now) {
			s.Status = domain.SlotStatusFree
			s.HeldBy = ""
			s.HoldExpiresAt = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeSlotRepo) update(slotID string, fn func(*domain.Slot)) error {
	for i := range f.slots {
		if f.slots[i].ID == slotID {
			fn(&f.slots[i])
			return nil
		}
	}
	return domain.ErrSlotNotFound
}
