package app

import (
	"context"
	"log"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// Orchestrator is the single entry point for inbound external events. It
// consults the event ledger and dispatches to the slot and credit
// services; the ledger row and the event's database side effects share one
// transaction, so a crash before commit leaves the event claimable by the
// provider's redelivery.
type Orchestrator struct {
	ledger  *EventLedger
	slots   *SlotService
	credits *CreditService
	logger  *log.Logger
}

func NewOrchestrator(ledger *EventLedger, slots *SlotService, credits *CreditService, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}
	return &Orchestrator{
		ledger:  ledger,
		slots:   slots,
		credits: credits,
		logger:  logger,
	}
}

// withEvent runs fn exactly once per (source, eventID). Duplicates return
// ErrDuplicateEvent, which callers acknowledge silently.
func (o *Orchestrator) withEvent(ctx context.Context, source, eventID string, fn func(ctx context.Context) error) error {
	if eventID == "" {
		return domain.ErrEventIDRequired
	}
	return o.ledger.WithTx(ctx, func(txCtx context.Context) error {
		isNew, err := o.ledger.RecordIfNew(txCtx, source, eventID)
		if err != nil {
			return err
		}
		if !isNew {
			o.logger.Printf("DEBUG duplicate event source=%s event_id=%s", source, eventID)
			return domain.ErrDuplicateEvent
		}
		return fn(txCtx)
	})
}

type CallStartedEvent struct {
	EventID  string
	TenantID string
	CallID   string
}

// HandleCallStarted places the worst-case hold for the call. Failure rolls
// back the ledger row so the platform's retry gets another attempt.
func (o *Orchestrator) HandleCallStarted(ctx context.Context, ev CallStartedEvent) (domain.CreditReservation, error) {
	var res domain.CreditReservation
	err := o.withEvent(ctx, domain.EventSourceCallPlatform, ev.EventID, func(txCtx context.Context) error {
		var err error
		res, err = o.credits.ReserveForCall(txCtx, ev.TenantID, ev.CallID)
		return err
	})
	if err != nil {
		return domain.CreditReservation{}, err
	}
	return res, nil
}

type CallEndedEvent struct {
	EventID         string
	CallID          string
	DurationSeconds int64
}

// HandleCallEnded settles the call: one debit at the tenant's rate, the
// rest of the hold returned to spendable balance.
func (o *Orchestrator) HandleCallEnded(ctx context.Context, ev CallEndedEvent) (CommitResult, error) {
	var result CommitResult
	err := o.withEvent(ctx, domain.EventSourceCallPlatform, ev.EventID, func(txCtx context.Context) error {
		var err error
		result, err = o.credits.SettleCall(txCtx, ev.CallID, ev.DurationSeconds)
		return err
	})
	if err != nil {
		return CommitResult{}, err
	}
	return result, nil
}

type PaymentEvent struct {
	EventID  string
	TenantID string
	Amount   int64
	Reason   string
}

// HandlePaymentSucceeded credits the wallet exactly once per provider
// event, no matter how many times it is redelivered.
func (o *Orchestrator) HandlePaymentSucceeded(ctx context.Context, ev PaymentEvent) (domain.CreditTransaction, error) {
	var txn domain.CreditTransaction
	err := o.withEvent(ctx, domain.EventSourcePayments, ev.EventID, func(txCtx context.Context) error {
		var err error
		txn, err = o.credits.TopUp(txCtx, ev.TenantID, ev.Amount)
		return err
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	return txn, nil
}

// HandlePaymentFailed records the event; there is no balance effect.
func (o *Orchestrator) HandlePaymentFailed(ctx context.Context, ev PaymentEvent) error {
	return o.withEvent(ctx, domain.EventSourcePayments, ev.EventID, func(context.Context) error {
		o.logger.Printf("payment failed tenant=%s reason=%s", ev.TenantID, ev.Reason)
		return nil
	})
}

// HandleRefundIssued debits the wallet for a processor-side refund.
func (o *Orchestrator) HandleRefundIssued(ctx context.Context, ev PaymentEvent) (domain.CreditTransaction, error) {
	var txn domain.CreditTransaction
	err := o.withEvent(ctx, domain.EventSourcePayments, ev.EventID, func(txCtx context.Context) error {
		var err error
		txn, err = o.credits.Refund(txCtx, ev.TenantID, ev.Amount)
		return err
	})
	if err != nil {
		return domain.CreditTransaction{}, err
	}
	return txn, nil
}

type MessageEvent struct {
	EventID   string
	Delivered bool
}

// HandleMessageEvent records delivery callbacks from the messaging
// gateway. The ledger row is the whole side effect.
func (o *Orchestrator) HandleMessageEvent(ctx context.Context, ev MessageEvent) error {
	return o.withEvent(ctx, domain.EventSourceMessaging, ev.EventID, func(context.Context) error {
		if !ev.Delivered {
			o.logger.Printf("message delivery failed event_id=%s", ev.EventID)
		}
		return nil
	})
}

type ToolClaimInput struct {
	ToolCallID string
	TenantID   string
	ResourceID string
	StartTime  time.Time
	Claimant   string
}

// ClaimSlotTool serves the agent's "book this slot" tool invocation
// synchronously. The claim itself is idempotent per claimant (re-claiming
// a slot you hold succeeds with the same hold), so a redelivered tool
// invocation returns the same result instead of being rejected; the
// ledger row is recorded for the replay audit trail.
func (o *Orchestrator) ClaimSlotTool(ctx context.Context, in ToolClaimInput) (domain.ClaimResult, error) {
	if in.ToolCallID == "" {
		return domain.ClaimResult{}, domain.ErrEventIDRequired
	}
	var result domain.ClaimResult
	err := o.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := o.ledger.RecordIfNew(txCtx, domain.EventSourceCallPlatform, in.ToolCallID); err != nil {
			return err
		}
		var err error
		result, err = o.slots.ClaimSlot(txCtx, ClaimSlotInput{
			TenantID:   in.TenantID,
			ResourceID: in.ResourceID,
			StartTime:  in.StartTime,
			Claimant:   in.Claimant,
		})
		return err
	})
	if err != nil {
		return domain.ClaimResult{}, err
	}
	return result, nil
}

type ToolSlotActionInput struct {
	ToolCallID string
	SlotID     string
	Claimant   string
}

// ConfirmSlotTool books a held slot on the agent's behalf.
func (o *Orchestrator) ConfirmSlotTool(ctx context.Context, in ToolSlotActionInput) (domain.Slot, error) {
	if in.ToolCallID == "" {
		return domain.Slot{}, domain.ErrEventIDRequired
	}
	var slot domain.Slot
	err := o.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := o.ledger.RecordIfNew(txCtx, domain.EventSourceCallPlatform, in.ToolCallID); err != nil {
			return err
		}
		var err error
		slot, err = o.slots.ConfirmSlot(txCtx, ConfirmSlotInput{SlotID: in.SlotID, Claimant: in.Claimant})
		return err
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}

// CancelSlotTool releases a hold or cancels a booking.
func (o *Orchestrator) CancelSlotTool(ctx context.Context, in ToolSlotActionInput) (domain.Slot, error) {
	if in.ToolCallID == "" {
		return domain.Slot{}, domain.ErrEventIDRequired
	}
	var slot domain.Slot
	err := o.ledger.WithTx(ctx, func(txCtx context.Context) error {
		if _, err := o.ledger.RecordIfNew(txCtx, domain.EventSourceCallPlatform, in.ToolCallID); err != nil {
			return err
		}
		var err error
		slot, err = o.slots.CancelSlot(txCtx, CancelSlotInput{SlotID: in.SlotID, Claimant: in.Claimant})
		return err
	})
	if err != nil {
		return domain.Slot{}, err
	}
	return slot, nil
}
