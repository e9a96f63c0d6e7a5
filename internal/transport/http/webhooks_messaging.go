package http

import (
	"context"
	"net/http"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// MessagingEvents is the slice of the orchestrator the messaging status
// callback needs.
type MessagingEvents interface {
	HandleMessageEvent(ctx context.Context, ev app.MessageEvent) error
}

// HandleMessagingWebhook consumes delivery status callbacks from the SMS
// gateway, posted as form data. A message sid alone is not unique across
// its lifecycle (the gateway reports queued, sent, delivered for the same
// sid), so the ledger key is sid plus status.
func HandleMessagingWebhook(orc MessagingEvents) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid form body")
			return
		}

		sid := r.PostFormValue("MessageSid")
		status := r.PostFormValue("MessageStatus")
		if sid == "" || status == "" {
			writeError(w, http.StatusBadRequest, codeEventIDRequired, "MessageSid and MessageStatus are required")
			return
		}

		switch status {
		case "delivered", "failed", "undelivered":
		default:
			// Intermediate statuses carry no action for the core.
			w.WriteHeader(http.StatusNoContent)
			return
		}

		err := orc.HandleMessageEvent(r.Context(), app.MessageEvent{
			EventID:   sid + ":" + status,
			Delivered: status == "delivered",
		})
		switch err {
		case nil, domain.ErrDuplicateEvent:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
	}
}
