package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	OwnerID         string          `db:"owner_id" json:"owner_id"`
	Balance         decimal.Decimal `db:"balance" json:"balance"`
	ReservedBalance decimal.Decimal `db:"reserved_balance" json:"reserved_balance"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// Available is the part of the balance not earmarked for a withdrawal.
func (w *Wallet) Available() decimal.Decimal {
	return w.Balance.Sub(w.ReservedBalance)
}

type LedgerEntry struct {
	ID           string            `db:"id" json:"id"`
	OwnerID      string            `db:"owner_id" json:"owner_id"`
	Type         LedgerEntryType   `db:"type" json:"type"`
	Amount       decimal.Decimal   `db:"amount" json:"amount"`
	Status       LedgerEntryStatus `db:"status" json:"status"`
	SessionID    *string           `db:"session_id" json:"session_id,omitempty"`
	WithdrawalID *string           `db:"withdrawal_id" json:"withdrawal_id,omitempty"`
	Description  string            `db:"description" json:"description"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

type CreateLedgerEntryParams struct {
	OwnerID      string
	Type         LedgerEntryType
	Amount       decimal.Decimal
	Status       LedgerEntryStatus
	SessionID    *string
	WithdrawalID *string
	Description  string
}
