package pricing

import (
	"errors"

	"github.com/shopspring/decimal"

	"charmstudio/internal/apperr"
)

// ErrPointsExceedTotal rejects a redemption worth more than the order.
var ErrPointsExceedTotal = errors.New("points redemption exceeds order total")

// ErrInsufficientPoints rejects a redemption above the user's balance.
var ErrInsufficientPoints = errors.New("insufficient loyalty points")

// Redemption is a request to pay part of an order with loyalty points.
type Redemption struct {
	Points     int
	PointValue decimal.Decimal
	// Balance is the user's current balance; checked when Points > 0.
	Balance int
}

// Value is the monetary worth of the redemption.
func (r Redemption) Value() (decimal.Decimal, error) {
	const op = "pricing.Redemption"
	if r.Points < 0 {
		return decimal.Zero, apperr.Validation(op, "points to use cannot be negative")
	}
	if r.Points == 0 {
		return decimal.Zero, nil
	}
	if !r.PointValue.IsPositive() {
		return decimal.Zero, apperr.Validation(op, "point value must be positive")
	}
	if r.Points > r.Balance {
		return decimal.Zero, &apperr.Error{Kind: apperr.KindValidation, Op: op, Err: ErrInsufficientPoints}
	}
	return Round(decimal.NewFromInt(int64(r.Points)).Mul(r.PointValue)), nil
}

// EarnedPoints credits floor(total * rate) points.
func EarnedPoints(total, rate decimal.Decimal) int {
	if !rate.IsPositive() || !total.IsPositive() {
		return 0
	}
	return int(total.Mul(rate).Floor().IntPart())
}
