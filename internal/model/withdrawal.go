package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type WithdrawalRequest struct {
	ID             string           `db:"id" json:"id"`
	OwnerID        string           `db:"owner_id" json:"owner_id"`
	Amount         decimal.Decimal  `db:"amount" json:"amount"`
	Method         PayoutMethodKind `db:"method" json:"method"`
	AccountDetails string           `db:"account_details" json:"-"`
	Status         WithdrawalStatus `db:"status" json:"status"`
	AdminNote      *string          `db:"admin_note" json:"admin_note,omitempty"`
	DecidedBy      *string          `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt      *time.Time       `db:"decided_at" json:"decided_at,omitempty"`
	PaidAt         *time.Time       `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

type CreateWithdrawalParams struct {
	OwnerID        string
	Amount         decimal.Decimal
	Method         PayoutMethodKind
	AccountDetails string
}

type DecideWithdrawalParams struct {
	Status    WithdrawalStatus
	DecidedBy string
	Note      *string
}
