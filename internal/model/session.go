package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

type Session struct {
	ID                 string              `db:"id" json:"id"`
	Kind               SessionKind         `db:"kind" json:"kind"`
	CustomerID         string              `db:"customer_id" json:"customer_id"`
	ProviderID         string              `db:"provider_id" json:"provider_id"`
	Status             SessionStatus       `db:"status" json:"status"`
	RatePerMinute      decimal.Decimal     `db:"rate_per_minute" json:"rate_per_minute"`
	CommissionFraction decimal.Decimal     `db:"commission_fraction" json:"commission_fraction"`
	RingingAt          *time.Time          `db:"ringing_at" json:"ringing_at,omitempty"`
	StartTime          *time.Time          `db:"start_time" json:"start_time"`
	EndTime            *time.Time          `db:"end_time" json:"end_time,omitempty"`
	DurationMinutes    *int                `db:"duration_minutes" json:"duration_minutes,omitempty"`
	TotalAmount        decimal.NullDecimal `db:"total_amount" json:"total_amount"`
	ProviderEarnings   decimal.NullDecimal `db:"provider_earnings" json:"provider_earnings"`
	PlatformCommission decimal.NullDecimal `db:"platform_commission" json:"platform_commission"`
	Notes              pq.StringArray      `db:"notes" json:"notes"`
	CancelReason       *string             `db:"cancel_reason" json:"cancel_reason,omitempty"`
	EndedBy            *string             `db:"ended_by" json:"ended_by,omitempty"`
	CreatedAt          time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time           `db:"updated_at" json:"updated_at"`
}

// HasParticipant reports whether actorID is the session's customer or provider.
func (s *Session) HasParticipant(actorID string) bool {
	return s.CustomerID == actorID || s.ProviderID == actorID
}

type CreateSessionParams struct {
	Kind               SessionKind
	CustomerID         string
	ProviderID         string
	RatePerMinute      decimal.Decimal
	CommissionFraction decimal.Decimal
}

type CompleteSessionParams struct {
	EndTime            time.Time
	DurationMinutes    int
	TotalAmount        decimal.Decimal
	ProviderEarnings   decimal.Decimal
	PlatformCommission decimal.Decimal
	EndedBy            string
}

type SessionListFilter struct {
	ActorID string
	Status  *SessionStatus
	Limit   int
	Offset  int
}
