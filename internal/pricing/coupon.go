package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"charmstudio/internal/apperr"
)

// DiscountKind is the rule a coupon applies to the order subtotal.
type DiscountKind string

const (
	DiscountFlat    DiscountKind = "flat"
	DiscountPercent DiscountKind = "percent"
)

// Coupon is read from the coupon collaborator and never mutated here.
type Coupon struct {
	Code        string          `json:"code"`
	Kind        DiscountKind    `json:"kind"`
	Amount      decimal.Decimal `json:"amount"`
	MinSubtotal decimal.Decimal `json:"min_subtotal"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// NormalizeCode canonicalizes a user-typed coupon code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Discount returns the amount taken off subtotal. It never exceeds the subtotal.
func (c Coupon) Discount(subtotal decimal.Decimal, now time.Time) (decimal.Decimal, error) {
	const op = "pricing.Coupon"
	if c.ExpiresAt != nil && !now.Before(*c.ExpiresAt) {
		return decimal.Zero, apperr.Validation(op, "coupon %s has expired", c.Code)
	}
	if c.Amount.IsNegative() {
		return decimal.Zero, apperr.Validation(op, "coupon %s has a negative amount", c.Code)
	}
	if subtotal.LessThan(c.MinSubtotal) {
		return decimal.Zero, apperr.Validation(op, "coupon %s requires a subtotal of at least %s", c.Code, c.MinSubtotal.StringFixed(Places))
	}

	var d decimal.Decimal
	switch c.Kind {
	case DiscountFlat:
		d = c.Amount
	case DiscountPercent:
		if c.Amount.GreaterThan(decimal.NewFromInt(100)) {
			return decimal.Zero, apperr.Validation(op, "coupon %s exceeds 100%%", c.Code)
		}
		d = subtotal.Mul(c.Amount).Div(decimal.NewFromInt(100))
	default:
		return decimal.Zero, apperr.Validation(op, "coupon %s has unknown kind %q", c.Code, c.Kind)
	}
	d = Round(d)
	if d.GreaterThan(subtotal) {
		d = subtotal
	}
	return d, nil
}
