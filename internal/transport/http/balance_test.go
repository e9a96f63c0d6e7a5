package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Odiabackend099/Callwaiting-AI-Voxanne-2026-sub008/internal/domain"
)

type fakeBalanceReader struct {
	summary domain.BalanceSummary
	err     error
	txns    []domain.CreditTransaction
	limit   int
}

func (f *fakeBalanceReader) GetBalance(_ context.Context, tenantID string) (domain.BalanceSummary, error) {
	return f.summary, f.err
}

func (f *fakeBalanceReader) ListTransactions(_ context.Context, tenantID string, limit int) ([]domain.CreditTransaction, error) {
	f.limit = limit
	return f.txns, f.err
}

func TestHandleGetBalance(t *testing.T) {
	t.Parallel()

	t.Run("reports the derived view", func(t *testing.T) {
		svc := &fakeBalanceReader{
			summary: domain.BalanceSummary{TenantID: "tenant-1", Wallet: 1000, Reserved: 300, Spendable: 700},
		}
		req := httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/balance", nil)
		rec := httptest.NewRecorder()
		HandleGetBalance(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp balanceResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Wallet != 1000 || resp.Reserved != 300 || resp.Spendable != 700 {
			t.Fatalf("unexpected response %+v", resp)
		}
	})

	t.Run("unknown tenant is a 404", func(t *testing.T) {
		svc := &fakeBalanceReader{err: domain.ErrTenantNotFound}
		req := httptest.NewRequest(http.MethodGet, "/tenants/tenant-9/balance", nil)
		rec := httptest.NewRecorder()
		HandleGetBalance(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})

	t.Run("malformed path is a 404", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tenants//balance", nil)
		rec := httptest.NewRecorder()
		HandleGetBalance(&fakeBalanceReader{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", rec.Code)
		}
	})
}

func TestHandleListTransactions(t *testing.T) {
	t.Parallel()

	callID := "call-1"
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	t.Run("lists ledger rows", func(t *testing.T) {
		svc := &fakeBalanceReader{
			txns: []domain.CreditTransaction{
				{ID: "txn-2", TenantID: "tenant-1", CallID: &callID, Amount: 30, Type: domain.TransactionTypeDebit, CreatedAt: now},
				{ID: "txn-1", TenantID: "tenant-1", Amount: 500, Type: domain.TransactionTypeTopup, CreatedAt: now.Add(-time.Hour)},
			},
		}
		req := httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/transactions", nil)
		rec := httptest.NewRecorder()
		HandleListTransactions(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		var resp transactionListResponse
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Transactions) != 2 {
			t.Fatalf("expected 2 transactions, got %d", len(resp.Transactions))
		}
		if resp.Transactions[0].Type != "debit" || resp.Transactions[0].CallID == nil {
			t.Fatalf("unexpected first row %+v", resp.Transactions[0])
		}
		if svc.limit != defaultTransactionLimit {
			t.Fatalf("expected default limit, got %d", svc.limit)
		}
	})

	t.Run("honours the limit parameter", func(t *testing.T) {
		svc := &fakeBalanceReader{}
		req := httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/transactions?limit=5", nil)
		rec := httptest.NewRecorder()
		HandleListTransactions(svc).ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if svc.limit != 5 {
			t.Fatalf("expected limit 5, got %d", svc.limit)
		}
	})

	t.Run("rejects a bad limit", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/tenants/tenant-1/transactions?limit=zero", nil)
		rec := httptest.NewRecorder()
		HandleListTransactions(&fakeBalanceReader{}).ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
	})
}
