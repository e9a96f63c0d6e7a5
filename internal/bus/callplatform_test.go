package bus

import (
	"context"
	"testing"
	"time"
)

type capturePublisher struct {
	key     string
	payload any
}

func (c *capturePublisher) PublishJSON(_ context.Context, key string, v any) error {
	c.key = key
	c.payload = v
	return nil
}

func TestCallPlatform_TerminateCall(t *testing.T) {
	t.Parallel()

	pub := &capturePublisher{}
	platform := &CallPlatform{pub: pub}

	cmd := TerminationCommand{
		CallID:      "call-1",
		TenantID:    "tenant-1",
		Reason:      ReasonBalanceExhausted,
		RequestedAt: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
	}
	if err := platform.TerminateCall(context.Background(), cmd); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if pub.key != routingTerminate {
		t.Fatalf("expected routing key %q, got %q", routingTerminate, pub.key)
	}
	got, ok := pub.payload.(TerminationCommand)
	if !ok {
		t.Fatalf("expected TerminationCommand payload, got %T", pub.payload)
	}
	if got != cmd {
		t.Fatalf("expected command round-trip, got %+v", got)
	}
}
