package worker

import (
	"context"
	"log"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/bus"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/clock"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// CreditChecker is the slice of the credit service the monitor needs.
type CreditChecker interface {
	ExhaustedCalls(ctx context.Context) ([]domain.ExhaustedCall, error)
	MarkTerminationRequested(ctx context.Context, reservationID string) error
}

// Terminator delivers termination commands to the call platform.
type Terminator interface {
	TerminateCall(ctx context.Context, cmd bus.TerminationCommand) error
}

// KillSwitch watches active reservations against wallet balance and ends
// calls whose tenant has run dry. Delivery failures are not escalated; the
// command is reissued on the next tick while the call stays alive, so the
// guarantee is soft-real-time bounded by one reservation ceiling.
type KillSwitch struct {
	credits    CreditChecker
	terminator Terminator
	clock      clock.Clock
	interval   time.Duration
	logger     *log.Logger
}

const defaultKillSwitchInterval = time.Minute

func NewKillSwitch(credits CreditChecker, terminator Terminator, clk clock.Clock, interval time.Duration, logger *log.Logger) *KillSwitch {
	if interval <= 0 {
		interval = defaultKillSwitchInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &KillSwitch{
		credits:    credits,
		terminator: terminator,
		clock:      clk,
		interval:   interval,
		logger:     logger,
	}
}

// Run blocks until ctx is cancelled.
func (k *KillSwitch) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	k.logger.Printf("kill-switch monitor started interval=%s", k.interval)
	for {
		select {
		case <-ctx.Done():
			k.logger.Printf("kill-switch monitor stopping")
			return
		case <-ticker.C:
			if n, err := k.Tick(ctx); err != nil {
				k.logger.Printf("kill-switch tick error: %v", err)
			} else if n > 0 {
				k.logger.Printf("kill-switch terminated calls=%d", n)
			}
		}
	}
}

// Tick runs one enforcement pass and returns how many termination
// commands were emitted.
func (k *KillSwitch) Tick(ctx context.Context) (int, error) {
	exhausted, err := k.credits.ExhaustedCalls(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, call := range exhausted {
		cmd := bus.TerminationCommand{
			CallID:      call.CallID,
			TenantID:    call.TenantID,
			Reason:      bus.ReasonBalanceExhausted,
			RequestedAt: k.clock.Now(),
		}
		if err := k.terminator.TerminateCall(ctx, cmd); err != nil {
			// Fire and forget: the next tick retries while the call lives.
			k.logger.Printf("terminate call=%s failed: %v", call.CallID, err)
			continue
		}
		sent++
		if err := k.credits.MarkTerminationRequested(ctx, call.ReservationID); err != nil {
			k.logger.Printf("mark termination call=%s failed: %v", call.CallID, err)
		}
	}
	return sent, nil
}
