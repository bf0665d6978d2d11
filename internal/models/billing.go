package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet transaction types.
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Invoice statuses.
const (
	InvoicePending = "pending"
	InvoicePaid    = "paid"
	InvoiceVoid    = "void"
)

// Wallet is a client's prepaid balance.
type Wallet struct {
	ClientID     uuid.UUID `json:"client_id"`
	BalanceCents int64     `json:"balance_cents"`
	Currency     string    `json:"currency"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WalletTransaction is one ledger entry with the balance it produced.
type WalletTransaction struct {
	ID                uuid.UUID `json:"id"`
	ClientID          uuid.UUID `json:"client_id"`
	Type              string    `json:"type"`
	Description       string    `json:"description"`
	AmountCents       int64     `json:"amount_cents"`
	BalanceAfterCents int64     `json:"balance_after_cents"`
	Reference         string    `json:"reference,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// Invoice billed to a client.
type Invoice struct {
	ID          uuid.UUID  `json:"id"`
	ClientID    uuid.UUID  `json:"client_id"`
	Number      string     `json:"number"`
	Description string     `json:"description"`
	AmountCents int64      `json:"amount_cents"`
	Status      string     `json:"status"`
	IssuedAt    time.Time  `json:"issued_at"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}
