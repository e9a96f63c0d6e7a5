package http

import (
	"encoding/json"
	"net/http"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeInvalidAmount        = "invalid_amount"
	codeInvalidStartTime     = "invalid_start_time"
	codeClaimantRequired     = "claimant_required"
	codeEventIDRequired      = "event_id_required"
	codeTenantNameRequired   = "tenant_name_required"
	codeTenantNotFound       = "tenant_not_found"
	codeTenantExists         = "tenant_already_exists"
	codeSlotNotFound         = "slot_not_found"
	codeSlotTaken            = "slot_taken"
	codeSlotNotHeld          = "slot_not_held"
	codeHoldExpired          = "hold_expired"
	codeNotClaimant          = "not_claimant"
	codeInsufficientFunds    = "insufficient_funds"
	codeReservationNotFound  = "reservation_not_found"
	codeReservationNotActive = "reservation_not_active"
	codeAlreadyBilled        = "already_billed"
	codeInvalidSignature     = "invalid_signature"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
