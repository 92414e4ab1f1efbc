package coupon

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeCoupon(t DiscountType, value float64) *Coupon {
	return &Coupon{
		ID:       1,
		Code:     "TEST",
		Type:     t,
		Value:    value,
		StartsAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		IsActive: true,
	}
}

var evalNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestEvaluate_PercentageDiscount(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)

	discount, err := Evaluate(c, 10000, evalNow)

	require.NoError(t, err)
	assert.Equal(t, int64(1000), discount)
}

func TestEvaluate_PercentageRoundsHalfUp(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)

	// 10% of 4998 cents is 499.8, rounds to 500
	discount, err := Evaluate(c, 4998, evalNow)
	require.NoError(t, err)
	assert.Equal(t, int64(500), discount)

	// 10% of 4995 cents is 499.5, half rounds up
	discount, err = Evaluate(c, 4995, evalNow)
	require.NoError(t, err)
	assert.Equal(t, int64(500), discount)

	// 10% of 4994 cents is 499.4, rounds down
	discount, err = Evaluate(c, 4994, evalNow)
	require.NoError(t, err)
	assert.Equal(t, int64(499), discount)
}

func TestEvaluate_FixedAmountDiscount(t *testing.T) {
	c := activeCoupon(DiscountTypeFixedAmount, 500)

	discount, err := Evaluate(c, 3000, evalNow)

	require.NoError(t, err)
	assert.Equal(t, int64(500), discount)
}

func TestEvaluate_DiscountClampedToSubtotal(t *testing.T) {
	c := activeCoupon(DiscountTypeFixedAmount, 5000)

	discount, err := Evaluate(c, 1200, evalNow)

	require.NoError(t, err)
	assert.Equal(t, int64(1200), discount)
}

func TestEvaluate_NilOrInactiveCoupon(t *testing.T) {
	_, err := Evaluate(nil, 1000, evalNow)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonNotFound, vErr.Reason)

	c := activeCoupon(DiscountTypePercentage, 10)
	c.IsActive = false
	_, err = Evaluate(c, 1000, evalNow)
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonNotFound, vErr.Reason)
}

func TestEvaluate_Expired(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)
	endsAt := evalNow.Add(-time.Hour)
	c.EndsAt = &endsAt

	_, err := Evaluate(c, 10000, evalNow)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonExpired, vErr.Reason)
}

func TestEvaluate_NotYetActive(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)
	c.StartsAt = evalNow.Add(time.Hour)

	_, err := Evaluate(c, 10000, evalNow)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonNotYetActive, vErr.Reason)
}

func TestEvaluate_UsageLimitExceeded(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)
	limit := 5
	c.UsageLimit = &limit
	c.UsedCount = 5

	_, err := Evaluate(c, 10000, evalNow)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonUsageExceeded, vErr.Reason)
}

func TestEvaluate_MinimumAmountNotMet(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)
	c.MinimumAmount = 5000

	_, err := Evaluate(c, 4999, evalNow)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonMinimumNotMet, vErr.Reason)
}

// The most specific failure wins: an expired coupon reports expired even
// when the subtotal is also below the minimum.
func TestEvaluate_ReasonPrecedence(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)
	endsAt := evalNow.Add(-time.Hour)
	c.EndsAt = &endsAt
	c.MinimumAmount = 100000

	_, err := Evaluate(c, 100, evalNow)

	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, ReasonExpired, vErr.Reason)
}

func TestEvaluate_UnknownType(t *testing.T) {
	c := activeCoupon("buy_one_get_one", 1)

	_, err := Evaluate(c, 10000, evalNow)

	require.Error(t, err)
	var vErr *ValidationError
	assert.False(t, errors.As(err, &vErr))
}

func TestHasUsageLeft(t *testing.T) {
	c := activeCoupon(DiscountTypePercentage, 10)
	assert.True(t, c.HasUsageLeft(), "no limit means unlimited usage")

	limit := 3
	c.UsageLimit = &limit
	c.UsedCount = 2
	assert.True(t, c.HasUsageLeft())

	c.UsedCount = 3
	assert.False(t, c.HasUsageLeft())
}
