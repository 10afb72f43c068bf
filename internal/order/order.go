// Package order freezes a priced cart into an immutable order record.
package order

import (
	"time"

	"github.com/shopspring/decimal"

	"charmstudio/internal/apperr"
	"charmstudio/internal/placement"
	"charmstudio/internal/pricing"
)

// PaymentMethod tells how the total is collected.
type PaymentMethod string

const (
	PaymentCard PaymentMethod = "card"
	// PaymentNone is the path of orders fully covered by coupons or points.
	PaymentNone PaymentMethod = "none"
)

// LineItem is one cart item with every price snapshotted at creation.
type LineItem struct {
	CartItemID   string                  `json:"cart_item_id"`
	ModelID      string                  `json:"model_id"`
	ModelName    string                  `json:"model_name"`
	JewelryType  placement.TypeRef       `json:"jewelry_type"`
	ModelPrice   decimal.Decimal         `json:"model_price"`
	Charms       []pricing.ChargeLine    `json:"charms"`
	Placements   []placement.PlacedCharm `json:"placements"`
	PreviewImage string                  `json:"preview_image,omitempty"`
	Total        decimal.Decimal         `json:"total"`
}

// Record is the persisted order. Price fields never change after creation.
type Record struct {
	ID             string          `json:"id"`
	RequestID      string          `json:"request_id"`
	UserID         string          `json:"user_id"`
	Email          string          `json:"email"`
	Items          []LineItem      `json:"items"`
	Currency       string          `json:"currency"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	CouponCode     string          `json:"coupon_code,omitempty"`
	Discount       decimal.Decimal `json:"discount"`
	Shipping       decimal.Decimal `json:"shipping"`
	ShippingMethod string          `json:"shipping_method"`
	PointsUsed     int             `json:"points_used"`
	PointsValue    decimal.Decimal `json:"points_value"`
	PointsEarned   int             `json:"points_earned"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	PaymentMethod  PaymentMethod   `json:"payment_method"`
	PaymentRef     string          `json:"payment_ref,omitempty"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Draft carries what Assemble needs beyond the priced items.
type Draft struct {
	ID             string
	RequestID      string
	UserID         string
	Email          string
	Currency       string
	ShippingMethod string
	Items          []placement.CartItem
	Breakdown      pricing.Breakdown
	Now            time.Time
}

// Assemble freezes a draft into a record. Free orders skip payment and start
// as StatusOrdered, the rest wait for payment in StatusPending.
func Assemble(d Draft) (Record, error) {
	const op = "order.Assemble"
	if len(d.Items) != len(d.Breakdown.Items) {
		return Record{}, apperr.Validation(op, "breakdown covers %d of %d items", len(d.Breakdown.Items), len(d.Items))
	}
	now := d.Now
	if now.IsZero() {
		now = time.Now()
	}
	rec := Record{
		ID:             d.ID,
		RequestID:      d.RequestID,
		UserID:         d.UserID,
		Email:          d.Email,
		Currency:       d.Currency,
		Items:          make([]LineItem, 0, len(d.Items)),
		Subtotal:       d.Breakdown.Subtotal,
		CouponCode:     d.Breakdown.CouponCode,
		Discount:       d.Breakdown.Discount,
		Shipping:       d.Breakdown.Shipping,
		ShippingMethod: d.ShippingMethod,
		PointsUsed:     d.Breakdown.PointsUsed,
		PointsValue:    d.Breakdown.PointsValue,
		PointsEarned:   d.Breakdown.PointsEarned,
		TotalPrice:     d.Breakdown.Total,
		PaymentMethod:  PaymentCard,
		Status:         StatusPending,
		CreatedAt:      now.UTC(),
		UpdatedAt:      now.UTC(),
	}
	if d.Breakdown.IsFree() {
		rec.PaymentMethod = PaymentNone
		rec.Status = StatusOrdered
	}
	for i, it := range d.Items {
		b := d.Breakdown.Items[i]
		if b.CartItemID != it.ID {
			return Record{}, apperr.Validation(op, "breakdown item %q does not match cart item %q", b.CartItemID, it.ID)
		}
		rec.Items = append(rec.Items, LineItem{
			CartItemID:   it.ID,
			ModelID:      it.Model.ID,
			ModelName:    it.Model.Name,
			JewelryType:  it.JewelryType,
			ModelPrice:   b.Model.Price,
			Charms:       append([]pricing.ChargeLine(nil), b.Charms...),
			Placements:   it.Clone().PlacedCharms,
			PreviewImage: it.PreviewImage,
			Total:        b.Total,
		})
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate rejects malformed records. Stores call it before every write.
func (r Record) Validate() error {
	const op = "order.Validate"
	switch {
	case r.ID == "":
		return apperr.Validation(op, "order id is required")
	case r.RequestID == "":
		return apperr.Validation(op, "request id is required")
	case r.UserID == "":
		return apperr.Validation(op, "user id is required")
	case len(r.Items) == 0:
		return apperr.Validation(op, "order has no items")
	case r.TotalPrice.IsNegative():
		return apperr.Validation(op, "order total is negative")
	case r.PointsUsed < 0 || r.PointsEarned < 0:
		return apperr.Validation(op, "point counts cannot be negative")
	case !r.Status.Valid():
		return apperr.Validation(op, "unknown status %q", r.Status)
	}
	if r.TotalPrice.IsZero() && r.PaymentMethod != PaymentNone {
		return apperr.Validation(op, "zero total requires payment method %q", PaymentNone)
	}
	if r.TotalPrice.IsPositive() && r.PaymentMethod != PaymentCard {
		return apperr.Validation(op, "positive total requires payment method %q", PaymentCard)
	}
	sum := decimal.Zero
	for _, li := range r.Items {
		if li.Total.IsNegative() {
			return apperr.Validation(op, "line item %q has a negative total", li.CartItemID)
		}
		sum = sum.Add(li.Total)
	}
	if !pricing.Round(sum).Equal(r.Subtotal) {
		return apperr.Validation(op, "line items sum to %s, subtotal is %s", sum.StringFixed(2), r.Subtotal.StringFixed(2))
	}
	want := r.Subtotal.Sub(r.Discount).Add(r.Shipping).Sub(r.PointsValue)
	if !pricing.Round(want).Equal(r.TotalPrice) {
		return apperr.Validation(op, "total %s does not rederive from its lines (%s)", r.TotalPrice.StringFixed(2), want.StringFixed(2))
	}
	return nil
}

// Rederive recomputes the total from the frozen line items only.
func (r Record) Rederive() decimal.Decimal {
	sum := decimal.Zero
	for _, li := range r.Items {
		sum = sum.Add(li.Total)
	}
	return pricing.Round(pricing.Round(sum).Sub(r.Discount).Add(r.Shipping).Sub(r.PointsValue))
}

// CharmDemand counts the charm units the order consumes, in placement order.
func (r Record) CharmDemand() map[string]int {
	out := make(map[string]int)
	for _, li := range r.Items {
		for _, pc := range li.Placements {
			out[pc.Charm.ID]++
		}
	}
	return out
}
