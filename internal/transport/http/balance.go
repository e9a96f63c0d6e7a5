package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

// BalanceReader is the slice of the credit service the balance endpoints
// need.
type BalanceReader interface {
	GetBalance(ctx context.Context, tenantID string) (domain.BalanceSummary, error)
	ListTransactions(ctx context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error)
}

const defaultTransactionLimit = 50

// HandleGetBalance serves GET /tenants/{id}/balance: the wallet balance,
// the sum held by active reservations, and the spendable remainder.
func HandleGetBalance(credits BalanceReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		tenantID, ok := parseTenantSubPath(r.URL.Path, "balance")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		summary, err := credits.GetBalance(r.Context(), tenantID)
		if err != nil {
			writeBalanceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, balanceResponse{
			TenantID:  summary.TenantID,
			Wallet:    summary.Wallet,
			Reserved:  summary.Reserved,
			Spendable: summary.Spendable,
		})
	}
}

// HandleListTransactions serves GET /tenants/{id}/transactions, newest
// first. The limit query parameter caps the page, defaulting to 50.
func HandleListTransactions(credits BalanceReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
			return
		}

		tenantID, ok := parseTenantSubPath(r.URL.Path, "transactions")
		if !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "not found")
			return
		}

		limit := defaultTransactionLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "limit must be a positive integer")
				return
			}
			limit = n
		}

		txns, err := credits.ListTransactions(r.Context(), tenantID, limit)
		if err != nil {
			writeBalanceError(w, err)
			return
		}

		items := make([]transactionDTO, 0, len(txns))
		for _, txn := range txns {
			items = append(items, transactionDTO{
				ID:        txn.ID,
				CallID:    txn.CallID,
				Amount:    txn.Amount,
				Type:      string(txn.Type),
				CreatedAt: txn.CreatedAt,
			})
		}
		writeJSON(w, http.StatusOK, transactionListResponse{Transactions: items})
	}
}

func writeBalanceError(w http.ResponseWriter, err error) {
	switch err {
	case domain.ErrTenantNotFound:
		writeError(w, http.StatusNotFound, codeTenantNotFound, err.Error())
	case domain.ErrInvalidID:
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}

func parseTenantSubPath(path, leaf string) (string, bool) {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 3 {
		return "", false
	}
	if parts[0] != "tenants" || parts[2] != leaf {
		return "", false
	}
	if parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

type balanceResponse struct {
	TenantID  string `json:"tenant_id"`
	Wallet    int64  `json:"wallet"`
	Reserved  int64  `json:"reserved"`
	Spendable int64  `json:"spendable"`
}

type transactionDTO struct {
	ID        string    `json:"id"`
	CallID    *string   `json:"call_id,omitempty"`
	Amount    int64     `json:"amount"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionListResponse struct {
	Transactions []transactionDTO `json:"transactions"`
}
