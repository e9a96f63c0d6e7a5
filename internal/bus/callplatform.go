package bus

import (
	"context"
	"time"
)

const routingTerminate = "call.terminate"

// TerminationCommand tells the call platform to end a live call. The
// reason code distinguishes a balance cutoff from a technical failure.
type TerminationCommand struct {
	CallID      string    `json:"call_id"`
	TenantID    string    `json:"tenant_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

const ReasonBalanceExhausted = "balance_exhausted"

type jsonPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// CallPlatform is the outbound command surface toward the call platform.
// Delivery is fire-and-forget; the kill switch reissues on its next tick
// if the call is still alive.
type CallPlatform struct {
	pub jsonPublisher
}

func NewCallPlatform(pub *Publisher) *CallPlatform {
	return &CallPlatform{pub: pub}
}

func (c *CallPlatform) TerminateCall(ctx context.Context, cmd TerminationCommand) error {
	return c.pub.PublishJSON(ctx, routingTerminate, cmd)
}
