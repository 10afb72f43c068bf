// Package pricing derives line-item breakdowns and order totals from frozen
// cart items. Every function here is pure.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"charmstudio/internal/apperr"
	"charmstudio/internal/placement"
)

// Places is the currency precision.
const Places = 2

// Round applies standard currency rounding.
func Round(d decimal.Decimal) decimal.Decimal { return d.Round(Places) }

// ChargeLine is one priced component of a cart item.
type ChargeLine struct {
	PlacedCharmID string          `json:"placed_charm_id,omitempty"`
	RefID         string          `json:"ref_id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
}

// ItemBreakdown prices one cart item.
type ItemBreakdown struct {
	CartItemID string          `json:"cart_item_id"`
	Model      ChargeLine      `json:"model"`
	Charms     []ChargeLine    `json:"charms"`
	Total      decimal.Decimal `json:"total"`
}

// PriceOf is the model price plus every placed charm price, rounded to cents.
func PriceOf(item placement.CartItem) (decimal.Decimal, error) {
	b, err := BreakdownOf(item)
	if err != nil {
		return decimal.Zero, err
	}
	return b.Total, nil
}

// BreakdownOf prices a cart item line by line.
func BreakdownOf(item placement.CartItem) (ItemBreakdown, error) {
	const op = "pricing.PriceOf"
	if item.Model.ID == "" {
		return ItemBreakdown{}, apperr.Validation(op, "cart item %q has no model", item.ID)
	}
	if item.Model.Price.IsNegative() {
		return ItemBreakdown{}, apperr.Validation(op, "model %q has a negative price", item.Model.ID)
	}
	out := ItemBreakdown{
		CartItemID: item.ID,
		Model:      ChargeLine{RefID: item.Model.ID, Name: item.Model.Name, Price: Round(item.Model.Price)},
		Charms:     make([]ChargeLine, 0, len(item.PlacedCharms)),
	}
	total := item.Model.Price
	for _, pc := range item.PlacedCharms {
		if pc.Charm.Price.IsNegative() {
			return ItemBreakdown{}, apperr.Validation(op, "charm %q has a negative price", pc.Charm.ID)
		}
		out.Charms = append(out.Charms, ChargeLine{
			PlacedCharmID: pc.ID,
			RefID:         pc.Charm.ID,
			Name:          pc.Charm.Name,
			Price:         Round(pc.Charm.Price),
		})
		total = total.Add(pc.Charm.Price)
	}
	out.Total = Round(total)
	return out, nil
}

// Quote is the input of OrderTotal.
type Quote struct {
	Items    []placement.CartItem
	Coupon   *Coupon
	Redeem   Redemption
	Shipping decimal.Decimal
	// EarnRate is the number of loyalty points credited per currency unit paid.
	EarnRate decimal.Decimal
	Now      time.Time
}

// Breakdown is the full price computation of an order.
type Breakdown struct {
	Items        []ItemBreakdown `json:"items"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	CouponCode   string          `json:"coupon_code,omitempty"`
	Discount     decimal.Decimal `json:"discount"`
	Shipping     decimal.Decimal `json:"shipping"`
	PointsUsed   int             `json:"points_used"`
	PointsValue  decimal.Decimal `json:"points_value"`
	Total        decimal.Decimal `json:"total"`
	PointsEarned int             `json:"points_earned"`
}

// IsFree reports whether nothing is left to collect.
func (b Breakdown) IsFree() bool { return b.Total.IsZero() }

// OrderTotal sums PriceOf over the items, applies the coupon once to that
// sum, adds shipping, then subtracts redeemed points. A redemption worth
// more than the amount due is rejected rather than clamped.
func OrderTotal(q Quote) (Breakdown, error) {
	const op = "pricing.OrderTotal"
	if len(q.Items) == 0 {
		return Breakdown{}, apperr.Validation(op, "cart is empty")
	}
	if q.Shipping.IsNegative() {
		return Breakdown{}, apperr.Validation(op, "shipping cannot be negative")
	}

	out := Breakdown{Items: make([]ItemBreakdown, 0, len(q.Items))}
	subtotal := decimal.Zero
	for _, it := range q.Items {
		b, err := BreakdownOf(it)
		if err != nil {
			return Breakdown{}, err
		}
		out.Items = append(out.Items, b)
		subtotal = subtotal.Add(b.Total)
	}
	out.Subtotal = Round(subtotal)

	out.Discount = decimal.Zero
	if q.Coupon != nil {
		now := q.Now
		if now.IsZero() {
			now = time.Now()
		}
		d, err := q.Coupon.Discount(out.Subtotal, now)
		if err != nil {
			return Breakdown{}, err
		}
		out.CouponCode = q.Coupon.Code
		out.Discount = d
	}

	out.Shipping = Round(q.Shipping)
	due := out.Subtotal.Sub(out.Discount).Add(out.Shipping)

	value, err := q.Redeem.Value()
	if err != nil {
		return Breakdown{}, err
	}
	if value.GreaterThan(due) {
		return Breakdown{}, &apperr.Error{
			Kind:    apperr.KindValidation,
			Op:      op,
			Message: "redeemed points are worth " + value.StringFixed(Places) + ", more than the " + due.StringFixed(Places) + " due",
			Err:     ErrPointsExceedTotal,
		}
	}
	out.PointsUsed = q.Redeem.Points
	out.PointsValue = value
	out.Total = Round(due.Sub(value))
	if out.Total.IsNegative() {
		return Breakdown{}, apperr.Validation(op, "computed a negative total %s", out.Total.StringFixed(Places))
	}
	out.PointsEarned = EarnedPoints(out.Total, q.EarnRate)
	return out, nil
}
