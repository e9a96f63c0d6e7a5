package domain

import "time"

type TransactionType string

const (
	TransactionTypeTopup  TransactionType = "topup"
	TransactionTypeDebit  TransactionType = "debit"
	TransactionTypeRefund TransactionType = "refund"
)

// CreditTransaction is an append-only ledger row. CallID is set only for
// debits and is unique among them, which is what makes double-billing a
// call structurally impossible.
type CreditTransaction struct {
	ID        string
	TenantID  string
	CallID    *string
	Amount    int64
	Type      TransactionType
	CreatedAt time.Time
}
