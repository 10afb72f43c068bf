package coupon

import (
	"context"
	"errors"
	"strings"

	"charmstudio/internal/apperr"
	"charmstudio/internal/pricing"
)

var ErrNotFound = errors.New("coupon: not found")

// Store reads coupon rules by normalized code.
type Store interface {
	Coupon(ctx context.Context, code string) (pricing.Coupon, error)
	Upsert(ctx context.Context, c pricing.Coupon) error
	List(ctx context.Context) ([]pricing.Coupon, error)
}

func validate(c pricing.Coupon) error {
	const op = "coupon.Upsert"
	switch {
	case strings.TrimSpace(c.Code) == "":
		return apperr.Validation(op, "coupon code is required")
	case c.Kind != pricing.DiscountFlat && c.Kind != pricing.DiscountPercent:
		return apperr.Validation(op, "coupon %s has unknown kind %q", c.Code, c.Kind)
	case !c.Amount.IsPositive():
		return apperr.Validation(op, "coupon %s amount must be positive", c.Code)
	case c.MinSubtotal.IsNegative():
		return apperr.Validation(op, "coupon %s minimum subtotal cannot be negative", c.Code)
	}
	return nil
}
