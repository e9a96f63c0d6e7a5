package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// PaymentEvents is the slice of the orchestrator the payment webhook needs.
type PaymentEvents interface {
	HandlePaymentSucceeded(ctx context.Context, ev app.PaymentEvent) (domain.CreditTransaction, error)
	HandlePaymentFailed(ctx context.Context, ev app.PaymentEvent) error
	HandleRefundIssued(ctx context.Context, ev app.PaymentEvent) (domain.CreditTransaction, error)
}

// maxWebhookBody caps the payload read before signature verification.
const maxWebhookBody = 65536

// HandleStripeWebhook verifies the Stripe-Signature header against the
// endpoint secret and credits or debits the tenant wallet named in the
// payment's metadata. The Stripe event ID is the idempotency key, so a
// redelivered event acknowledges without touching the balance again.
func HandleStripeWebhook(orc PaymentEvents, endpointSecret string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "could not read request body")
			return
		}

		// Accept events regardless of the account's pinned API version:
		// the fields read below (id, metadata, amounts) are stable across
		// versions, and rejecting on a version bump would drop payments.
		event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), endpointSecret,
			webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
		if err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidSignature, "webhook signature verification failed")
			return
		}

		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "malformed payment intent")
				return
			}
			_, err = orc.HandlePaymentSucceeded(r.Context(), app.PaymentEvent{
				EventID:  event.ID,
				TenantID: pi.Metadata["tenant_id"],
				Amount:   pi.AmountReceived,
			})
			writeStripeResult(w, err)

		case "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "malformed payment intent")
				return
			}
			reason := ""
			if pi.LastPaymentError != nil {
				reason = string(pi.LastPaymentError.Code)
			}
			err = orc.HandlePaymentFailed(r.Context(), app.PaymentEvent{
				EventID:  event.ID,
				TenantID: pi.Metadata["tenant_id"],
				Reason:   reason,
			})
			writeStripeResult(w, err)

		case "charge.refunded":
			var ch stripe.Charge
			if err := json.Unmarshal(event.Data.Raw, &ch); err != nil {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "malformed charge")
				return
			}
			_, err = orc.HandleRefundIssued(r.Context(), app.PaymentEvent{
				EventID:  event.ID,
				TenantID: ch.Metadata["tenant_id"],
				Amount:   ch.AmountRefunded,
			})
			writeStripeResult(w, err)

		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		}
	}
}

func writeStripeResult(w http.ResponseWriter, err error) {
	switch err {
	case nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	case domain.ErrDuplicateEvent:
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
	case domain.ErrTenantNotFound, domain.ErrInvalidID:
		// A payment for an unknown tenant will not resolve on retry.
		writeError(w, http.StatusBadRequest, codeTenantNotFound, err.Error())
	case domain.ErrInvalidAmount:
		writeError(w, http.StatusBadRequest, codeInvalidAmount, err.Error())
	case domain.ErrInsufficientFunds:
		// Refund larger than the remaining wallet; needs operator review,
		// retrying will not help.
		writeError(w, http.StatusConflict, codeInsufficientFunds, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
