package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// SlotTools is the synchronous tool surface the voice agent invokes
// mid-call.
type SlotTools interface {
	ClaimSlotTool(ctx context.Context, in app.ToolClaimInput) (domain.ClaimResult, error)
	ConfirmSlotTool(ctx context.Context, in app.ToolSlotActionInput) (domain.Slot, error)
	CancelSlotTool(ctx context.Context, in app.ToolSlotActionInput) (domain.Slot, error)
}

// HandleClaimSlot serves the agent's "book this slot" tool invocation. A
// conflict is a normal 409 answer carrying alternative start times so the
// agent can pivot in the same conversational turn.
func HandleClaimSlot(svc SlotTools) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req claimSlotRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if code, msg := req.validate(); code != "" {
			writeError(w, http.StatusBadRequest, code, msg)
			return
		}

		result, err := svc.ClaimSlotTool(r.Context(), app.ToolClaimInput{
			ToolCallID: req.ToolCallID,
			TenantID:   req.TenantID,
			ResourceID: req.ResourceID,
			StartTime:  req.StartTime.UTC(),
			Claimant:   req.Claimant,
		})
		if err != nil {
			writeSlotError(w, err)
			return
		}

		if result.Outcome == domain.ClaimOutcomeConflict {
			writeJSON(w, http.StatusConflict, claimSlotResponse{
				Status:       string(result.Outcome),
				Alternatives: result.Alternatives,
			})
			return
		}
		writeJSON(w, http.StatusOK, claimSlotResponse{
			Status: string(result.Outcome),
			Slot:   slotPayload(result.Slot),
		})
	}
}

// HandleConfirmSlot promotes a hold to a booking.
func HandleConfirmSlot(svc SlotTools) http.HandlerFunc {
	return handleSlotAction(func(ctx context.Context, in app.ToolSlotActionInput) (domain.Slot, error) {
		return svc.ConfirmSlotTool(ctx, in)
	})
}

// HandleCancelSlot releases a hold or cancels a booking.
func HandleCancelSlot(svc SlotTools) http.HandlerFunc {
	return handleSlotAction(func(ctx context.Context, in app.ToolSlotActionInput) (domain.Slot, error) {
		return svc.CancelSlotTool(ctx, in)
	})
}

func handleSlotAction(action func(ctx context.Context, in app.ToolSlotActionInput) (domain.Slot, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req slotActionRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.ToolCallID == "" {
			writeError(w, http.StatusBadRequest, codeEventIDRequired, domain.ErrEventIDRequired.Error())
			return
		}
		if req.SlotID == "" {
			writeError(w, http.StatusBadRequest, codeInvalidID, "slot_id is required")
			return
		}
		if req.Claimant == "" {
			writeError(w, http.StatusBadRequest, codeClaimantRequired, domain.ErrClaimantRequired.Error())
			return
		}

		slot, err := action(r.Context(), app.ToolSlotActionInput{
			ToolCallID: req.ToolCallID,
			SlotID:     req.SlotID,
			Claimant:   req.Claimant,
		})
		if err != nil {
			writeSlotError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, slotPayload(slot))
	}
}

func writeSlotError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case domain.ErrClaimantRequired:
		writeError(w, http.StatusBadRequest, codeClaimantRequired, err.Error())
	case domain.ErrEventIDRequired:
		writeError(w, http.StatusBadRequest, codeEventIDRequired, err.Error())
	case domain.ErrSlotNotFound:
		writeError(w, http.StatusNotFound, codeSlotNotFound, err.Error())
	case domain.ErrSlotTaken:
		writeError(w, http.StatusConflict, codeSlotTaken, err.Error())
	case domain.ErrSlotNotHeld:
		writeError(w, http.StatusConflict, codeSlotNotHeld, err.Error())
	case domain.ErrHoldExpired:
		writeError(w, http.StatusConflict, codeHoldExpired, err.Error())
	case domain.ErrNotClaimant:
		writeError(w, http.StatusForbidden, codeNotClaimant, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

type claimSlotRequest struct {
	ToolCallID string    `json:"tool_call_id"`
	TenantID   string    `json:"tenant_id"`
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
	Claimant   string    `json:"claimant"`
}

func (r claimSlotRequest) validate() (code, msg string) {
	if r.ToolCallID == "" {
		return codeEventIDRequired, domain.ErrEventIDRequired.Error()
	}
	if r.TenantID == "" || r.ResourceID == "" {
		return codeInvalidID, "tenant_id and resource_id are required"
	}
	if r.StartTime.IsZero() {
		return codeInvalidStartTime, "start_time is required"
	}
	if r.Claimant == "" {
		return codeClaimantRequired, domain.ErrClaimantRequired.Error()
	}
	return "", ""
}

type slotActionRequest struct {
	ToolCallID string `json:"tool_call_id"`
	SlotID     string `json:"slot_id"`
	Claimant   string `json:"claimant"`
}

type claimSlotResponse struct {
	Status       string      `json:"status"`
	Slot         *slotDTO    `json:"slot,omitempty"`
	Alternatives []time.Time `json:"alternatives,omitempty"`
}

type slotDTO struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	ResourceID    string     `json:"resource_id"`
	StartTime     time.Time  `json:"start_time"`
	Status        string     `json:"status"`
	HoldExpiresAt *time.Time `json:"hold_expires_at,omitempty"`
}

func slotPayload(s domain.Slot) *slotDTO {
	return &slotDTO{
		ID:            s.ID,
		TenantID:      s.TenantID,
		ResourceID:    s.ResourceID,
		StartTime:     s.StartTime,
		Status:        string(s.Status),
		HoldExpiresAt: s.HoldExpiresAt,
	}
}
