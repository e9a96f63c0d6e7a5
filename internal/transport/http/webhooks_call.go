package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/bus"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// CallEvents is the slice of the orchestrator the call webhook needs.
type CallEvents interface {
	HandleCallStarted(ctx context.Context, ev app.CallStartedEvent) (domain.CreditReservation, error)
	HandleCallEnded(ctx context.Context, ev app.CallEndedEvent) (app.CommitResult, error)
}

type callWebhookEnvelope struct {
	EventID string `json:"event_id"`
	Type    string `json:"type"`
	Call    struct {
		ID       string `json:"id"`
		TenantID string `json:"tenant_id"`
	} `json:"call"`
	DurationSeconds int64 `json:"duration_seconds"`
}

// HandleCallWebhook consumes call-lifecycle events from the call
// platform. Redeliveries are acknowledged with 200 so the provider stops
// retrying; real failures return 500 and roll back the ledger row, which
// makes the provider's retry our retry.
func HandleCallWebhook(orc CallEvents) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var env callWebhookEnvelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if env.EventID == "" {
			writeError(w, http.StatusBadRequest, codeEventIDRequired, domain.ErrEventIDRequired.Error())
			return
		}

		switch env.Type {
		case "call.started":
			res, err := orc.HandleCallStarted(r.Context(), app.CallStartedEvent{
				EventID:  env.EventID,
				TenantID: env.Call.TenantID,
				CallID:   env.Call.ID,
			})
			if err != nil {
				switch err {
				case domain.ErrDuplicateEvent:
					writeJSON(w, http.StatusOK, callWebhookResponse{Status: "duplicate"})
				case domain.ErrInsufficientFunds:
					// Synchronous kill switch: the call must not run
					// without a hold behind it.
					writeJSON(w, http.StatusOK, callWebhookResponse{
						Status: "rejected",
						Action: "terminate",
						Reason: bus.ReasonBalanceExhausted,
					})
				case domain.ErrTenantNotFound, domain.ErrInvalidID:
					writeError(w, http.StatusBadRequest, codeTenantNotFound, err.Error())
				case domain.ErrCallIDRequired:
					writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusOK, callWebhookResponse{
				Status:         "ok",
				ReservationID:  res.ID,
				ReservedAmount: res.ReservedAmount,
			})

		case "call.ended":
			result, err := orc.HandleCallEnded(r.Context(), app.CallEndedEvent{
				EventID:         env.EventID,
				CallID:          env.Call.ID,
				DurationSeconds: env.DurationSeconds,
			})
			if err != nil {
				switch err {
				case domain.ErrDuplicateEvent:
					writeJSON(w, http.StatusOK, callWebhookResponse{Status: "duplicate"})
				case domain.ErrReservationNotFound:
					// The call-started event may still be in flight; a 500
					// makes the provider redeliver after it lands.
					writeError(w, http.StatusInternalServerError, codeReservationNotFound, err.Error())
				case domain.ErrCallIDRequired:
					writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
				default:
					writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
				}
				return
			}
			writeJSON(w, http.StatusOK, callWebhookResponse{
				Status:          "ok",
				CommittedAmount: result.CommittedAmount,
				ReleasedAmount:  result.ReleasedAmount,
			})

		default:
			// Unknown lifecycle types are acknowledged, not errored: the
			// platform ships more event kinds than this core consumes.
			writeJSON(w, http.StatusOK, callWebhookResponse{Status: "ignored"})
		}
	}
}

type callWebhookResponse struct {
	Status          string `json:"status"`
	Action          string `json:"action,omitempty"`
	Reason          string `json:"reason,omitempty"`
	ReservationID   string `json:"reservation_id,omitempty"`
	ReservedAmount  int64  `json:"reserved_amount,omitempty"`
	CommittedAmount int64  `json:"committed_amount,omitempty"`
	ReleasedAmount  int64  `json:"released_amount,omitempty"`
}
