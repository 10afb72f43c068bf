package pricing

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"charmstudio/internal/apperr"
	"charmstudio/internal/catalog"
	"charmstudio/internal/placement"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func cartItem(id, modelPrice string, charmPrices ...string) placement.CartItem {
	it := placement.CartItem{
		ID:    id,
		Model: catalog.JewelryModel{ID: "m-" + id, Name: "Base", Price: d(modelPrice)},
	}
	for i, p := range charmPrices {
		it.PlacedCharms = append(it.PlacedCharms, placement.PlacedCharm{
			ID:    id + "-pc" + string(rune('a'+i)),
			Charm: catalog.Charm{ID: "c" + string(rune('a'+i)), Name: "Charm", Price: d(p)},
		})
	}
	return it
}

func TestPriceOfScenario(t *testing.T) {
	got, err := PriceOf(cartItem("i1", "20.00", "5.50", "3.25"))
	require.NoError(t, err)
	assert.Equal(t, "28.75", got.StringFixed(2))
}

func TestPriceOfRoundsToCents(t *testing.T) {
	got, err := PriceOf(cartItem("i1", "10.004", "0.003"))
	require.NoError(t, err)
	assert.Equal(t, "10.01", got.StringFixed(2))
}

func TestPriceOfRejectsNegativePrices(t *testing.T) {
	_, err := PriceOf(cartItem("i1", "-1.00"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = PriceOf(cartItem("i1", "1.00", "-0.50"))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestPriceOfIgnoresLiveCatalogChanges(t *testing.T) {
	live := catalog.Charm{ID: "c1", Price: d("5.50")}
	model := catalog.JewelryModel{ID: "m1", Price: d("20.00")}
	s := placement.NewSession(model, placement.TypeRef{})
	s.AddCharm(live, placement.Position{X: 10, Y: 10})
	item := s.Freeze()

	before, err := PriceOf(item)
	require.NoError(t, err)

	live.Price = d("99.00")
	model.Price = d("1.00")

	after, err := PriceOf(item)
	require.NoError(t, err)
	assert.True(t, before.Equal(after))
}

func TestOrderTotalFlatCoupon(t *testing.T) {
	b, err := OrderTotal(Quote{
		Items:  []placement.CartItem{cartItem("i1", "20.00", "5.50", "3.25")},
		Coupon: &Coupon{Code: "FIVE", Kind: DiscountFlat, Amount: d("5.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, "28.75", b.Subtotal.StringFixed(2))
	assert.Equal(t, "5.00", b.Discount.StringFixed(2))
	assert.Equal(t, "23.75", b.Total.StringFixed(2))
	assert.False(t, b.IsFree())
}

func TestOrderTotalCouponAppliedOnceAfterSummation(t *testing.T) {
	b, err := OrderTotal(Quote{
		Items: []placement.CartItem{
			cartItem("i1", "10.00"),
			cartItem("i2", "10.00"),
			cartItem("i3", "10.00"),
		},
		Coupon: &Coupon{Code: "FIVE", Kind: DiscountFlat, Amount: d("5.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, "25.00", b.Total.StringFixed(2))
	require.Len(t, b.Items, 3)
}

func TestOrderTotalPercentCoupon(t *testing.T) {
	b, err := OrderTotal(Quote{
		Items:  []placement.CartItem{cartItem("i1", "19.99")},
		Coupon: &Coupon{Code: "TEN", Kind: DiscountPercent, Amount: d("10")},
	})
	require.NoError(t, err)
	assert.Equal(t, "2.00", b.Discount.StringFixed(2))
	assert.Equal(t, "17.99", b.Total.StringFixed(2))
}

func TestCouponRules(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	_, err := Coupon{Code: "OLD", Kind: DiscountFlat, Amount: d("1"), ExpiresAt: &past}.Discount(d("10"), now)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = Coupon{Code: "MIN", Kind: DiscountFlat, Amount: d("1"), MinSubtotal: d("50")}.Discount(d("10"), now)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	got, err := Coupon{Code: "BIG", Kind: DiscountFlat, Amount: d("40")}.Discount(d("10"), now)
	require.NoError(t, err)
	assert.Equal(t, "10.00", got.StringFixed(2), "discount is capped at the subtotal")

	_, err = Coupon{Code: "X", Kind: "bogus", Amount: d("1")}.Discount(d("10"), now)
	assert.Error(t, err)
}

func TestOrderTotalRejectsOverRedemption(t *testing.T) {
	_, err := OrderTotal(Quote{
		Items:  []placement.CartItem{cartItem("i1", "20.00", "5.50", "3.25")},
		Coupon: &Coupon{Code: "FIVE", Kind: DiscountFlat, Amount: d("5.00")},
		Redeem: Redemption{Points: 3000, PointValue: d("0.01"), Balance: 5000},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPointsExceedTotal))
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOrderTotalPointsCoverExactly(t *testing.T) {
	b, err := OrderTotal(Quote{
		Items:    []placement.CartItem{cartItem("i1", "20.00", "3.75")},
		Redeem:   Redemption{Points: 2375, PointValue: d("0.01"), Balance: 2375},
		EarnRate: d("1"),
	})
	require.NoError(t, err)
	assert.True(t, b.IsFree())
	assert.Equal(t, 2375, b.PointsUsed)
	assert.Equal(t, 0, b.PointsEarned)
}

func TestOrderTotalInsufficientBalance(t *testing.T) {
	_, err := OrderTotal(Quote{
		Items:  []placement.CartItem{cartItem("i1", "20.00")},
		Redeem: Redemption{Points: 100, PointValue: d("0.01"), Balance: 99},
	})
	assert.True(t, errors.Is(err, ErrInsufficientPoints))
}

func TestOrderTotalShippingAndEarnedPoints(t *testing.T) {
	b, err := OrderTotal(Quote{
		Items:    []placement.CartItem{cartItem("i1", "20.00", "5.50")},
		Shipping: d("4.90"),
		Redeem:   Redemption{Points: 40, PointValue: d("0.01"), Balance: 100},
		EarnRate: d("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "30.00", b.Total.StringFixed(2))
	assert.Equal(t, 30, b.PointsEarned)
}

func TestOrderTotalEmptyCart(t *testing.T) {
	_, err := OrderTotal(Quote{})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestOrderTotalRejectsNegativePoints(t *testing.T) {
	_, err := OrderTotal(Quote{
		Items:  []placement.CartItem{cartItem("i1", "20.00")},
		Redeem: Redemption{Points: -5, PointValue: d("0.01")},
	})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
