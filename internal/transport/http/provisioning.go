package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/app"
	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// TenantProvisioner is the slice of the provisioning service the tenant
// endpoints need.
type TenantProvisioner interface {
	CreateTenant(ctx context.Context, in app.CreateTenantInput) (domain.Tenant, error)
	GetTenant(ctx context.Context, tenantID string) (domain.Tenant, error)
}

// SlotSeeder is the slice of the slot service the slot seeding endpoint
// needs.
type SlotSeeder interface {
	SeedSlot(ctx context.Context, in app.SeedSlotInput) (domain.Slot, error)
}

// HandleTenants dispatches /tenants and /tenants/{id}.
func HandleTenants(svc TenantProvisioner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			if r.URL.Path != "/tenants" {
				writeError(w, http.StatusNotFound, codeNotFound, "not found")
				return
			}
			handleCreateTenant(svc, w, r)
		case http.MethodGet:
			handleGetTenant(svc, w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
		}
	}
}

func handleCreateTenant(svc TenantProvisioner, w http.ResponseWriter, r *http.Request) {
	var req createTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
		return
	}

	tenant, err := svc.CreateTenant(r.Context(), app.CreateTenantInput{
		Name:          req.Name,
		RatePerMinute: req.RatePerMinute,
	})
	if err != nil {
		switch err {
		case domain.ErrTenantNameRequired:
			writeError(w, http.StatusBadRequest, codeTenantNameRequired, err.Error())
		case domain.ErrTenantExists:
			writeError(w, http.StatusConflict, codeTenantExists, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusCreated, tenantToDTO(tenant))
}

func handleGetTenant(svc TenantProvisioner, w http.ResponseWriter, r *http.Request) {
	tenantID, ok := parseTenantPath(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
		return
	}

	tenant, err := svc.GetTenant(r.Context(), tenantID)
	if err != nil {
		switch err {
		case domain.ErrTenantNotFound:
			writeError(w, http.StatusNotFound, codeTenantNotFound, err.Error())
		case domain.ErrInvalidID:
			writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, tenantToDTO(tenant))
}

// HandleSeedSlot serves POST /slots: materializing bookable inventory
// from the tenant's calendar.
func HandleSeedSlot(svc SlotSeeder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		var req seedSlotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}
		if req.StartTime.IsZero() {
			writeError(w, http.StatusBadRequest, codeInvalidStartTime, "start_time is required")
			return
		}

		slot, err := svc.SeedSlot(r.Context(), app.SeedSlotInput{
			TenantID:   req.TenantID,
			ResourceID: req.ResourceID,
			StartTime:  req.StartTime,
		})
		if err != nil {
			switch err {
			case domain.ErrSlotTaken:
				writeError(w, http.StatusConflict, codeSlotTaken, err.Error())
			case domain.ErrInvalidID:
				writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
			default:
				writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
			}
			return
		}

		writeJSON(w, http.StatusCreated, slotPayload(slot))
	}
}

func parseTenantPath(path string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 {
		return "", false
	}
	if parts[0] != "tenants" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type createTenantRequest struct {
	Name          string `json:"name"`
	RatePerMinute int64  `json:"rate_per_minute"`
}

type seedSlotRequest struct {
	TenantID   string    `json:"tenant_id"`
	ResourceID string    `json:"resource_id"`
	StartTime  time.Time `json:"start_time"`
}

type tenantDTO struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Status        string    `json:"status"`
	WalletBalance int64     `json:"wallet_balance"`
	RatePerMinute int64     `json:"rate_per_minute"`
	CreatedAt     time.Time `json:"created_at"`
}

func tenantToDTO(t domain.Tenant) tenantDTO {
	return tenantDTO{
		ID:            t.ID,
		Name:          t.Name,
		Status:        string(t.Status),
		WalletBalance: t.WalletBalance,
		RatePerMinute: t.RatePerMinute,
		CreatedAt:     t.CreatedAt,
	}
}
