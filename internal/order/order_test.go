package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/placement"
	"charmstudio/internal/pricing"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func sampleItem() placement.CartItem {
	return placement.CartItem{
		ID:    "item-1",
		Model: catalog.JewelryModel{ID: "m1", Name: "Chaîne fine", Price: dec("20.00")},
		PlacedCharms: []placement.PlacedCharm{
			{ID: "pc-1", Charm: catalog.Charm{ID: "star", Name: "Star", Price: dec("5.50")}},
			{ID: "pc-2", Charm: catalog.Charm{ID: "moon", Name: "Moon", Price: dec("3.25")}},
		},
	}
}

func draft(t *testing.T, q pricing.Quote) Draft {
	t.Helper()
	b, err := pricing.OrderTotal(q)
	require.NoError(t, err)
	return Draft{
		ID:        "ord-1",
		RequestID: "req-1",
		UserID:    "u1",
		Email:     "u1@example.com",
		Currency:  "EUR",
		Items:     q.Items,
		Breakdown: b,
		Now:       time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestAssembleCardOrder(t *testing.T) {
	items := []placement.CartItem{sampleItem()}
	rec, err := Assemble(draft(t, pricing.Quote{
		Items:  items,
		Coupon: &pricing.Coupon{Code: "FIVE", Kind: pricing.DiscountFlat, Amount: dec("5.00")},
	}))
	require.NoError(t, err)

	assert.Equal(t, StatusPending, rec.Status)
	assert.Equal(t, PaymentCard, rec.PaymentMethod)
	assert.Equal(t, "23.75", rec.TotalPrice.StringFixed(2))
	require.Len(t, rec.Items, 1)
	assert.Equal(t, "28.75", rec.Items[0].Total.StringFixed(2))
	assert.Len(t, rec.Items[0].Charms, 2)
	assert.True(t, rec.Rederive().Equal(rec.TotalPrice))
}

func TestAssembleFreeOrderBypassesPayment(t *testing.T) {
	items := []placement.CartItem{sampleItem()}
	rec, err := Assemble(draft(t, pricing.Quote{
		Items:  items,
		Redeem: pricing.Redemption{Points: 2875, PointValue: dec("0.01"), Balance: 3000},
	}))
	require.NoError(t, err)
	assert.True(t, rec.TotalPrice.IsZero())
	assert.Equal(t, PaymentNone, rec.PaymentMethod)
	assert.Equal(t, StatusOrdered, rec.Status)
}

func TestAssembleSnapshotsPlacements(t *testing.T) {
	items := []placement.CartItem{sampleItem()}
	rec, err := Assemble(draft(t, pricing.Quote{Items: items}))
	require.NoError(t, err)

	items[0].PlacedCharms[0].Charm.Price = dec("99.00")
	assert.Equal(t, "5.50", rec.Items[0].Placements[0].Charm.Price.StringFixed(2))
}

func TestValidateRejectsTamperedTotals(t *testing.T) {
	rec, err := Assemble(draft(t, pricing.Quote{Items: []placement.CartItem{sampleItem()}}))
	require.NoError(t, err)

	bad := rec
	bad.TotalPrice = dec("1.00")
	assert.True(t, apperr.Is(bad.Validate(), apperr.KindValidation))

	bad = rec
	bad.Items = nil
	assert.Error(t, bad.Validate())

	bad = rec
	bad.TotalPrice = decimal.Zero
	bad.Subtotal = decimal.Zero
	bad.Items = []LineItem{{CartItemID: "x", Total: decimal.Zero}}
	assert.Error(t, bad.Validate(), "zero total still needs the no-payment method")
}

func TestCharmDemand(t *testing.T) {
	it := sampleItem()
	it.PlacedCharms = append(it.PlacedCharms, placement.PlacedCharm{ID: "pc-3", Charm: catalog.Charm{ID: "star", Price: dec("5.50")}})
	rec, err := Assemble(draft(t, pricing.Quote{Items: []placement.CartItem{it}}))
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"star": 2, "moon": 1}, rec.CharmDemand())
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusOrdered, true},
		{StatusOrdered, StatusPreparing, true},
		{StatusPreparing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusCancelled, true},
		{StatusPreparing, StatusCancelled, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusOrdered, StatusShipped, false},
		{StatusOrdered, "perdue", false},
	}
	for _, tt := range tests {
		err := CheckAdvance(tt.from, tt.to)
		if tt.ok {
			assert.NoError(t, err, "%s -> %s", tt.from, tt.to)
		} else {
			assert.Error(t, err, "%s -> %s", tt.from, tt.to)
		}
	}
	assert.True(t, StatusDelivered.Terminal())
	assert.True(t, StatusCancelled.Terminal())
	assert.False(t, StatusPending.Terminal())
}
