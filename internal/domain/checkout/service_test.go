package checkout

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/coupon"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/pricing"
)

var testPolicy = config.CheckoutConfig{
	Currency:              "USD",
	FreeShippingThreshold: 5000,
	ShippingFlatRate:      799,
	TaxRate:               0.14,
}

var totalsNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func line(unitPrice int64, quantity int) pricing.ResolvedLine {
	return pricing.ResolvedLine{
		ProductID: 1,
		SKU:       "SKU-1",
		UnitPrice: unitPrice,
		Quantity:  quantity,
	}
}

func percentCoupon(value float64) *coupon.Coupon {
	return &coupon.Coupon{
		ID:       1,
		Code:     "PCT",
		Type:     coupon.DiscountTypePercentage,
		Value:    value,
		StartsAt: totalsNow.Add(-time.Hour),
		IsActive: true,
	}
}

func TestComputeTotals_EmptyCart(t *testing.T) {
	totals, err := ComputeTotals(nil, nil, totalsNow, testPolicy)

	require.NoError(t, err)
	assert.Equal(t, int64(0), totals.Subtotal)
	assert.Equal(t, int64(0), totals.DiscountAmount)
	assert.Equal(t, int64(0), totals.ShippingCost)
	assert.Equal(t, int64(0), totals.TaxAmount)
	assert.Equal(t, int64(0), totals.Total)
	assert.Empty(t, totals.Lines)
}

func TestComputeTotals_BelowFreeShippingThreshold(t *testing.T) {
	// Two items at $12.50 each: subtotal $25.00, below the $50 threshold
	totals, err := ComputeTotals([]pricing.ResolvedLine{line(1250, 2)}, nil, totalsNow, testPolicy)

	require.NoError(t, err)
	assert.Equal(t, int64(2500), totals.Subtotal)
	assert.Equal(t, int64(799), totals.ShippingCost)
	// 14% of 2500 = 350
	assert.Equal(t, int64(350), totals.TaxAmount)
	assert.Equal(t, int64(3649), totals.Total)
}

func TestComputeTotals_FreeShippingAboveThreshold(t *testing.T) {
	totals, err := ComputeTotals([]pricing.ResolvedLine{line(6000, 1)}, nil, totalsNow, testPolicy)

	require.NoError(t, err)
	assert.Equal(t, int64(6000), totals.Subtotal)
	assert.Equal(t, int64(0), totals.ShippingCost)
	assert.Equal(t, int64(840), totals.TaxAmount)
	assert.Equal(t, int64(6840), totals.Total)
}

func TestComputeTotals_ThresholdIsExclusive(t *testing.T) {
	// Exactly at the threshold still pays shipping
	totals, err := ComputeTotals([]pricing.ResolvedLine{line(5000, 1)}, nil, totalsNow, testPolicy)

	require.NoError(t, err)
	assert.Equal(t, int64(799), totals.ShippingCost)
}

func TestComputeTotals_CouponDiscountAndTax(t *testing.T) {
	// Subtotal 4998, 10% off = 500 (499.8 rounds up), taxable 4498,
	// tax 14% = 629.72 rounds to 630, shipping applies on the
	// pre-discount subtotal which is below the threshold.
	totals, err := ComputeTotals([]pricing.ResolvedLine{line(2499, 2)}, percentCoupon(10), totalsNow, testPolicy)

	require.NoError(t, err)
	assert.Equal(t, int64(4998), totals.Subtotal)
	assert.Equal(t, int64(500), totals.DiscountAmount)
	assert.Equal(t, int64(799), totals.ShippingCost)
	assert.Equal(t, int64(630), totals.TaxAmount)
	assert.Equal(t, int64(4998-500+799+630), totals.Total)
	assert.Equal(t, "PCT", totals.CouponCode)
}

func TestComputeTotals_TaxNeverAppliesToShipping(t *testing.T) {
	totals, err := ComputeTotals([]pricing.ResolvedLine{line(1000, 1)}, nil, totalsNow, testPolicy)

	require.NoError(t, err)
	// Tax on the 1000 subtotal only, not on the 799 shipping
	assert.Equal(t, int64(140), totals.TaxAmount)
}

func TestComputeTotals_FullDiscountLeavesShippingOnly(t *testing.T) {
	totals, err := ComputeTotals([]pricing.ResolvedLine{line(3000, 1)}, percentCoupon(100), totalsNow, testPolicy)

	require.NoError(t, err)
	assert.Equal(t, int64(3000), totals.DiscountAmount)
	assert.Equal(t, int64(0), totals.TaxAmount)
	assert.Equal(t, int64(799), totals.Total)
}

func TestComputeTotals_Identity(t *testing.T) {
	cases := []struct {
		name  string
		lines []pricing.ResolvedLine
		c     *coupon.Coupon
	}{
		{"no coupon small", []pricing.ResolvedLine{line(199, 3)}, nil},
		{"no coupon large", []pricing.ResolvedLine{line(12999, 2)}, nil},
		{"percentage", []pricing.ResolvedLine{line(3333, 3)}, percentCoupon(15)},
		{"mixed lines", []pricing.ResolvedLine{line(2499, 1), line(799, 4)}, percentCoupon(20)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals, err := ComputeTotals(tc.lines, tc.c, totalsNow, testPolicy)
			require.NoError(t, err)

			assert.Equal(t,
				totals.Subtotal-totals.DiscountAmount+totals.ShippingCost+totals.TaxAmount,
				totals.Total)
			assert.GreaterOrEqual(t, totals.Total, int64(0))
			assert.LessOrEqual(t, totals.DiscountAmount, totals.Subtotal)
		})
	}
}

func TestComputeTotals_InvalidCouponFails(t *testing.T) {
	c := percentCoupon(10)
	c.MinimumAmount = 100000

	_, err := ComputeTotals([]pricing.ResolvedLine{line(1000, 1)}, c, totalsNow, testPolicy)

	var vErr *coupon.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, coupon.ReasonMinimumNotMet, vErr.Reason)
}

// Repeated previews of the same cart must agree to the cent.
func TestComputeTotals_Deterministic(t *testing.T) {
	lines := []pricing.ResolvedLine{line(2499, 2), line(1299, 1)}
	c := percentCoupon(10)

	first, err := ComputeTotals(lines, c, totalsNow, testPolicy)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := ComputeTotals(lines, c, totalsNow, testPolicy)
		require.NoError(t, err)
		assert.Equal(t, first.Total, again.Total)
		assert.Equal(t, first.TaxAmount, again.TaxAmount)
	}
}
