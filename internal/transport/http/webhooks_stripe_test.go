package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

const testEndpointSecret = "whsec_test_secret"

type fakePaymentEvents struct {
	succeedErr error
	failErr    error
	refundErr  error
	succeeded  []app.PaymentEvent
	failed     []app.PaymentEvent
	refunded   []app.PaymentEvent
}

func (f *fakePaymentEvents) HandlePaymentSucceeded(_ context.Context, ev app.PaymentEvent) (domain.CreditTransaction, error) {
	f.succeeded = append(f.succeeded, ev)
	return domain.CreditTransaction{ID: "txn-1"}, f.succeedErr
}

func (f *fakePaymentEvents) HandlePaymentFailed(_ context.Context, ev app.PaymentEvent) error {
	f.failed = append(f.failed, ev)
	return f.failErr
}

func (f *fakePaymentEvents) HandleRefundIssued(_ context.Context, ev app.PaymentEvent) (domain.CreditTransaction, error) {
	f.refunded = append(f.refunded, ev)
	return domain.CreditTransaction{ID: "txn-2"}, f.refundErr
}

func signedStripeRequest(t *testing.T, payload string) *http.Request {
	t.Helper()
	now := time.Now()
	sig := webhook.ComputeSignature(now, []byte(payload), testEndpointSecret)
	header := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(sig))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(payload))
	req.Header.Set("Stripe-Signature", header)
	return req
}

func TestHandleStripeWebhook(t *testing.T) {
	t.Parallel()

	t.Run("rejects a bad signature", func(t *testing.T) {
		orc := &fakePaymentEvents{}
		req := httptest.NewRequest(http.MethodPost, "/webhooks/payments", strings.NewReader(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=deadbeef")
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		var resp errorResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Code != codeInvalidSignature {
			t.Fatalf("expected %s, got %s", codeInvalidSignature, resp.Code)
		}
		if len(orc.succeeded) != 0 {
			t.Fatalf("expected no dispatch on bad signature")
		}
	})

	t.Run("payment succeeded credits the tenant from metadata", func(t *testing.T) {
		orc := &fakePaymentEvents{}
		payload := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"amount_received":5000,"metadata":{"tenant_id":"tenant-1"}}}}`
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, signedStripeRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(orc.succeeded) != 1 {
			t.Fatalf("expected 1 dispatch, got %d", len(orc.succeeded))
		}
		ev := orc.succeeded[0]
		if ev.EventID != "evt_1" || ev.TenantID != "tenant-1" || ev.Amount != 5000 {
			t.Fatalf("unexpected event %+v", ev)
		}
	})

	t.Run("duplicate event acknowledges without error", func(t *testing.T) {
		orc := &fakePaymentEvents{succeedErr: domain.ErrDuplicateEvent}
		payload := `{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"amount_received":5000,"metadata":{"tenant_id":"tenant-1"}}}}`
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, signedStripeRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
	})

	t.Run("payment failed records the reason", func(t *testing.T) {
		orc := &fakePaymentEvents{}
		payload := `{"id":"evt_2","type":"payment_intent.payment_failed","data":{"object":{"metadata":{"tenant_id":"tenant-1"},"last_payment_error":{"code":"card_declined"}}}}`
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, signedStripeRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(orc.failed) != 1 || orc.failed[0].Reason != "card_declined" {
			t.Fatalf("unexpected events %+v", orc.failed)
		}
	})

	t.Run("refund debits the refunded amount", func(t *testing.T) {
		orc := &fakePaymentEvents{}
		payload := `{"id":"evt_3","type":"charge.refunded","data":{"object":{"amount_refunded":2000,"metadata":{"tenant_id":"tenant-1"}}}}`
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, signedStripeRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(orc.refunded) != 1 || orc.refunded[0].Amount != 2000 {
			t.Fatalf("unexpected events %+v", orc.refunded)
		}
	})

	t.Run("accepts events pinned to another api version", func(t *testing.T) {
		orc := &fakePaymentEvents{}
		payload := `{"id":"evt_5","api_version":"2020-08-27","type":"payment_intent.succeeded","data":{"object":{"amount_received":1000,"metadata":{"tenant_id":"tenant-1"}}}}`
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, signedStripeRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(orc.succeeded) != 1 {
			t.Fatalf("expected 1 dispatch, got %d", len(orc.succeeded))
		}
	})

	t.Run("unhandled event types are acknowledged", func(t *testing.T) {
		orc := &fakePaymentEvents{}
		payload := `{"id":"evt_4","type":"customer.created","data":{"object":{}}}`
		rec := httptest.NewRecorder()

		HandleStripeWebhook(orc, testEndpointSecret).ServeHTTP(rec, signedStripeRequest(t, payload))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if len(orc.succeeded)+len(orc.failed)+len(orc.refunded) != 0 {
			t.Fatalf("expected no dispatch")
		}
	})
}
