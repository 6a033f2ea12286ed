package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/minutely/consult-server/internal/config"
)

// Settlement is the money movement for one completed session.
type Settlement struct {
	DurationMinutes    int             `json:"duration_minutes"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	ProviderEarnings   decimal.Decimal `json:"provider_earnings"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
}

// DurationMinutes returns the billable minutes between start and end,
// rounded up to the next whole minute.
func DurationMinutes(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 0
	}
	return int((d + time.Minute - 1) / time.Minute)
}

// CalculateSettlement splits minutes × rate into provider earnings and platform
// commission. All amounts are rounded half-up to the currency's minor unit and
// earnings + commission always equals the total.
func CalculateSettlement(minutes int, rate, commissionFraction decimal.Decimal) Settlement {
	if minutes < 0 {
		minutes = 0
	}
	total := rate.Mul(decimal.NewFromInt(int64(minutes))).Round(config.CurrencyDecimals)
	earnings := total.Mul(decimal.NewFromInt(1).Sub(commissionFraction)).Round(config.CurrencyDecimals)
	return Settlement{
		DurationMinutes:    minutes,
		TotalAmount:        total,
		ProviderEarnings:   earnings,
		PlatformCommission: total.Sub(earnings),
	}
}

// MinimumBalance is the balance a customer needs to open a session.
func MinimumBalance(rate decimal.Decimal, minutes int) decimal.Decimal {
	return rate.Mul(decimal.NewFromInt(int64(minutes))).Round(config.CurrencyDecimals)
}

// AffordableMinutes is how many whole minutes the available balance covers.
func AffordableMinutes(available, rate decimal.Decimal) int {
	if !rate.IsPositive() || !available.IsPositive() {
		return 0
	}
	return int(available.Div(rate).Floor().IntPart())
}
