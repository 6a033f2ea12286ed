package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account mirrors the identity service's user record; this service only reads it.
type Account struct {
	ID        string        `db:"id" json:"id"`
	Role      Role          `db:"role" json:"role"`
	Status    AccountStatus `db:"status" json:"status"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// Provider is a provider directory entry.
type Provider struct {
	ID                 string              `db:"id" json:"id"`
	DisplayName        string              `db:"display_name" json:"display_name"`
	RatePerMinute      decimal.Decimal     `db:"rate_per_minute" json:"rate_per_minute"`
	CommissionFraction decimal.NullDecimal `db:"commission_fraction" json:"commission_fraction"`
	Online             bool                `db:"online" json:"online"`
	Approved           bool                `db:"approved" json:"approved"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// Commission returns the provider's commission fraction, or fallback when none is set.
func (p *Provider) Commission(fallback decimal.Decimal) decimal.Decimal {
	if p.CommissionFraction.Valid {
		return p.CommissionFraction.Decimal
	}
	return fallback
}

type PayoutMethod struct {
	ID        string           `db:"id" json:"id"`
	OwnerID   string           `db:"owner_id" json:"owner_id"`
	Method    PayoutMethodKind `db:"method" json:"method"`
	Label     string           `db:"label" json:"label"`
	IsActive  bool             `db:"is_active" json:"is_active"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// Actor is the authenticated caller as resolved by the identity gate.
type Actor struct {
	ID   string
	Role Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}
