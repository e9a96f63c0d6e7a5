package app

import (
	"context"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

type CreditRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	AcquireTenantLock(ctx context.Context, tenantID string) error
	GetTenantForUpdate(ctx context.Context, tenantID string) (domain.Tenant, error)
	SumActiveReservations(ctx context.Context, tenantID string, now time.Time) (int64, error)
	CreateReservation(ctx context.Context, res domain.CreditReservation) error
	GetReservationByCallID(ctx context.Context, callID string) (*domain.CreditReservation, error)
	GetReservationForUpdate(ctx context.Context, reservationID string) (domain.CreditReservation, error)
	MarkCommitted(ctx context.Context, reservationID string, committedAmount int64) error
	MarkReleased(ctx context.Context, reservationID string) error
	ExpireStale(ctx context.Context, now time.Time) ([]domain.CreditReservation, error)
	MarkTerminationRequested(ctx context.Context, reservationID string, at time.Time) error
	ExhaustedCalls(ctx context.Context, now time.Time) ([]domain.ExhaustedCall, error)
	InsertTransaction(ctx context.Context, txn domain.CreditTransaction) error
	GetDebitByCallID(ctx context.Context, callID string) (*domain.CreditTransaction, error)
	ListTransactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error)
	ApplyWalletDelta(ctx context.Context, tenantID string, delta int64) error
}

// CreditService manages the hold → capture/release lifecycle for call
// spend. Committed spend can never exceed the wallet: reserves are checked
// under a per-tenant advisory lock, and the debit ledger's unique call_id
// makes double capture impossible.
type CreditService struct {
	repo           CreditRepository
	clock          clock.Clock
	maxCallMinutes int64
	reservationTTL time.Duration
}

const (
	defaultMaxCallMinutes = int64(60)
	defaultReservationTTL = 60 * time.Minute
)

func NewCreditService(repo CreditRepository, clk clock.Clock, opts ...CreditServiceOption) *CreditService {
	svc := &CreditService{
		repo:           repo,
		clock:          clk,
		maxCallMinutes: defaultMaxCallMinutes,
		reservationTTL: defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type CreditServiceOption func(*CreditService)

// WithMaxCallMinutes overrides the worst-case call length used to size
// reservation ceilings.
func WithMaxCallMinutes(m int64) CreditServiceOption {
	return func(s *CreditService) {
		if m > 0 {
			s.maxCallMinutes = m
		}
	}
}

// WithReservationTTL overrides how long a reservation may stay active
// before the sweep force-releases it.
func WithReservationTTL(d time.Duration) CreditServiceOption {
	return func(s *CreditService) {
		if d > 0 {
			s.reservationTTL = d
		}
	}
}

type ReserveInput struct {
	TenantID string
	CallID   string
	Amount   int64
}

// Reserve places a hold of Amount against the tenant's wallet. The check
// `wallet − Σ active reservations ≥ amount` runs under the tenant lock so
// two concurrent reserves can never both pass on the same funds. A repeat
// reserve for the same call returns the existing reservation.
func (s *CreditService) Reserve(ctx context.Context, in ReserveInput) (domain.CreditReservation, error) {
	if in.CallID == "" {
		return domain.CreditReservation{}, domain.ErrCallIDRequired
	}
	if in.Amount <= 0 {
		return domain.CreditReservation{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var result domain.CreditReservation

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.AcquireTenantLock(txCtx, in.TenantID); err != nil {
			return err
		}

		if existing, err := s.repo.GetReservationByCallID(txCtx, in.CallID); err != nil {
			return err
		} else if existing != nil {
			result = *existing
			return nil
		}

		tenant, err := s.repo.GetTenantForUpdate(txCtx, in.TenantID)
		if err != nil {
			return err
		}
		held, err := s.repo.SumActiveReservations(txCtx, in.TenantID, now)
		if err != nil {
			return err
		}
		if tenant.WalletBalance-held < in.Amount {
			return domain.ErrInsufficientFunds
		}

		res := domain.CreditReservation{
			ID:             newID(),
			TenantID:       in.TenantID,
			CallID:         in.CallID,
			ReservedAmount: in.Amount,
			Status:         domain.ReservationStatusActive,
			CreatedAt:      now,
			ExpiresAt:      now.Add(s.reservationTTL),
		}

		if err := s.repo.CreateReservation(txCtx, res); err != nil {
			// A concurrent reserve for the same call won the insert.
			if err == domain.ErrReservationExists {
				existing, err := s.repo.GetReservationByCallID(txCtx, in.CallID)
				if err != nil {
					return err
				}
				if existing != nil {
					result = *existing
					return nil
				}
			}
			return err
		}

		result = res
		return nil
	})
	if err != nil {
		return domain.CreditReservation{}, err
	}
	return result, nil
}

// ReserveForCall sizes the hold to the worst case for the tenant's rate:
// max call minutes × rate per minute.
func (s *CreditService) ReserveForCall(ctx context.Context, tenantID, callID string) (domain.CreditReservation, error) {
	var result domain.CreditReservation
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		// Same lock order as Reserve; pg_advisory_xact_lock re-entry in
		// the nested call is a no-op.
		if err := s.repo.AcquireTenantLock(txCtx, tenantID); err != nil {
			return err
		}
		tenant, err := s.repo.GetTenantForUpdate(txCtx, tenantID)
		if err != nil {
			return err
		}
		result, err = s.Reserve(txCtx, ReserveInput{
			TenantID: tenantID,
			CallID:   callID,
			Amount:   s.maxCallMinutes * tenant.RatePerMinute,
		})
		return err
	})
	if err != nil {
		return domain.CreditReservation{}, err
	}
	return result, nil
}

type CommitResult struct {
	TransactionID   string
	CommittedAmount int64
	ReleasedAmount  int64
	AlreadyBilled   bool
}

// Commit captures the call's actual cost against the reservation and
// returns the remainder to spendable balance. The cost is capped at the
// reserved ceiling. Idempotent on call_id: the unique debit constraint
// rejects a second capture, and the original result is returned instead.
func (s *CreditService) Commit(ctx context.Context, reservationID string, actualAmount int64) (CommitResult, error) {
	if actualAmount <= 0 {
		return CommitResult{}, domain.ErrInvalidAmount
	}

	now := s.clock.Now()
	var result CommitResult

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}

		if res.Status == domain.ReservationStatusCommitted {
			debit, err := s.repo.GetDebitByCallID(txCtx, res.CallID)
			if err != nil {
				return err
			}
			if debit == nil {
				return domain.ErrReservationNotActive
			}
			result = CommitResult{
				TransactionID:   debit.ID,
				CommittedAmount: debit.Amount,
				ReleasedAmount:  res.ReservedAmount - debit.Amount,
				AlreadyBilled:   true,
			}
			return nil
		}
		if res.Status != domain.ReservationStatusActive {
			return domain.ErrReservationNotActive
		}

		amount := actualAmount
		if amount > res.ReservedAmount {
			amount = res.ReservedAmount
		}

		callID := res.CallID
		txn := domain.CreditTransaction{
			ID:        newID(),
			TenantID:  res.TenantID,
			CallID:    &callID,
			Amount:    amount,
			Type:      domain.TransactionTypeDebit,
			CreatedAt: now,
		}
		if err := s.repo.InsertTransaction(txCtx, txn); err != nil {
			// "already billed" is a safe no-op, not a failure: surface the
			// original debit.
			if err == domain.ErrAlreadyBilled {
				debit, derr := s.repo.GetDebitByCallID(txCtx, res.CallID)
				if derr != nil {
					return derr
				}
				if debit != nil {
					result = CommitResult{
						TransactionID:   debit.ID,
						CommittedAmount: debit.Amount,
						ReleasedAmount:  res.ReservedAmount - debit.Amount,
						AlreadyBilled:   true,
					}
					return nil
				}
			}
			return err
		}

		if err := s.repo.ApplyWalletDelta(txCtx, res.TenantID, -amount); err != nil {
			return err
		}
		if err := s.repo.MarkCommitted(txCtx, res.ID, amount); err != nil {
			return err
		}

		result = CommitResult{
			TransactionID:   txn.ID,
			CommittedAmount: amount,
			ReleasedAmount:  res.ReservedAmount - amount,
		}
		return nil
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

// CommitCall resolves the reservation by call id and commits it.
func (s *CreditService) CommitCall(ctx context.Context, callID string, actualAmount int64) (CommitResult, error) {
	var result CommitResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationByCallID(txCtx, callID)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.ErrReservationNotFound
		}
		result, err = s.Commit(txCtx, res.ID, actualAmount)
		return err
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

// SettleCall prices a finished call and captures it. Duration rounds up
// to whole minutes at the tenant's rate; a zero-duration call releases the
// hold instead of writing a zero debit.
func (s *CreditService) SettleCall(ctx context.Context, callID string, durationSeconds int64) (CommitResult, error) {
	if callID == "" {
		return CommitResult{}, domain.ErrCallIDRequired
	}

	var result CommitResult
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationByCallID(txCtx, callID)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.ErrReservationNotFound
		}
		// The sweep may have force-released the hold before a delayed end
		// event arrives. The funds are already back in the wallet, so
		// acknowledge the settlement rather than leaving the provider
		// redelivering an event that can never resolve.
		if res.Status == domain.ReservationStatusReleased || res.Status == domain.ReservationStatusExpired {
			result = CommitResult{ReleasedAmount: res.ReservedAmount}
			return nil
		}
		if durationSeconds <= 0 {
			if err := s.Release(txCtx, res.ID); err != nil {
				return err
			}
			result = CommitResult{ReleasedAmount: res.ReservedAmount}
			return nil
		}

		tenant, err := s.repo.GetTenantForUpdate(txCtx, res.TenantID)
		if err != nil {
			return err
		}
		minutes := (durationSeconds + 59) / 60
		result, err = s.Commit(txCtx, res.ID, minutes*tenant.RatePerMinute)
		return err
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

// Release returns the full reserved amount to spendable balance; used when
// a call never starts or never reports a final cost. Releasing a
// reservation that is no longer active is a safe no-op.
func (s *CreditService) Release(ctx context.Context, reservationID string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationForUpdate(txCtx, reservationID)
		if err != nil {
			return err
		}
		if res.Status != domain.ReservationStatusActive {
			return nil
		}
		return s.repo.MarkReleased(txCtx, res.ID)
	})
}

// ReleaseCall releases by call id.
func (s *CreditService) ReleaseCall(ctx context.Context, callID string) error {
	return s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservationByCallID(txCtx, callID)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.ErrReservationNotFound
		}
		return s.Release(txCtx, res.ID)
	})
}

// ExpireStale force-releases reservations older than the maximum call
// duration, guarding against a lost call-end event.
func (s *CreditService) ExpireStale(ctx context.Context) ([]domain.CreditReservation, error) {
	return s.repo.ExpireStale(ctx, s.clock.Now())
}

// TopUp credits the wallet from a payment event.
func (s *CreditService) TopUp(ctx context.Context, tenantID string, amount int64) (domain.CreditTransaction, error) {
	if amount <= 0 {
		return domain.CreditTransaction{}, domain.ErrInvalidAmount
	}

	txn := domain.CreditTransaction{
		ID:        newID(),
		TenantID:  tenantID,
		Amount:    amount,
		Type:      domain.TransactionTypeTopup,
		CreatedAt: s.clock.Now(),
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.ApplyWalletDelta(txCtx, tenantID, amount); err != nil {
			return err
		}
		return s.repo.InsertTransaction(txCtx, txn)
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	return txn, nil
}

// Refund debits the wallet for a refund issued by the payment processor.
// A refund larger than the wallet is rejected; balance never goes
// negative.
func (s *CreditService) Refund(ctx context.Context, tenantID string, amount int64) (domain.CreditTransaction, error) {
	if amount <= 0 {
		return domain.CreditTransaction{}, domain.ErrInvalidAmount
	}

	txn := domain.CreditTransaction{
		ID:        newID(),
		TenantID:  tenantID,
		Amount:    amount,
		Type:      domain.TransactionTypeRefund,
		CreatedAt: s.clock.Now(),
	}

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.AcquireTenantLock(txCtx, tenantID); err != nil {
			return err
		}
		if err := s.repo.ApplyWalletDelta(txCtx, tenantID, -amount); err != nil {
			return err
		}
		return s.repo.InsertTransaction(txCtx, txn)
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	return txn, nil
}

// GetBalance derives the spendable view inside one transaction so no
// instance ever reports a stale number.
func (s *CreditService) GetBalance(ctx context.Context, tenantID string) (domain.BalanceSummary, error) {
	now := s.clock.Now()
	var summary domain.BalanceSummary

	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		tenant, err := s.repo.GetTenantForUpdate(txCtx, tenantID)
		if err != nil {
			return err
		}
		held, err := s.repo.SumActiveReservations(txCtx, tenantID, now)
		if err != nil {
			return err
		}
		summary = domain.BalanceSummary{
			TenantID:  tenantID,
			Wallet:    tenant.WalletBalance,
			Reserved:  held,
			Spendable: tenant.WalletBalance - held,
		}
		return nil
	})
	if err != nil {
		return domain.BalanceSummary{}, err
	}
	return summary, nil
}

// ListTransactions returns the tenant's most recent ledger rows.
func (s *CreditService) ListTransactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.ListTransactions(ctx, tenantID, limit)
}

// ExhaustedCalls lists active calls whose tenant has no spendable balance
// left; consumed by the kill-switch monitor.
func (s *CreditService) ExhaustedCalls(ctx context.Context) ([]domain.ExhaustedCall, error) {
	return s.repo.ExhaustedCalls(ctx, s.clock.Now())
}

// MarkTerminationRequested records that the kill switch asked the call
// platform to end this call.
func (s *CreditService) MarkTerminationRequested(ctx context.Context, reservationID string) error {
	return s.repo.MarkTerminationRequested(ctx, reservationID, s.clock.Now())
}
