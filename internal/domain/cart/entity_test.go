package cart

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRef_Identity(t *testing.T) {
	userID := uint(42)

	userRef := Ref{UserID: &userID}
	assert.False(t, userRef.IsGuest())
	assert.True(t, userRef.Valid())
	assert.Equal(t, "cart:coupon:user:42", userRef.CouponKey())

	guestRef := Ref{SessionID: "abc-123"}
	assert.True(t, guestRef.IsGuest())
	assert.True(t, guestRef.Valid())
	assert.Equal(t, "cart:session:abc-123", guestRef.Key())
	assert.Equal(t, "cart:coupon:session:abc-123", guestRef.CouponKey())

	empty := Ref{}
	assert.False(t, empty.Valid())
}

func TestSameLine(t *testing.T) {
	variantA := uint(1)
	variantB := uint(2)

	item := SessionCartItem{ProductID: 10, ProductVariantID: &variantA}
	assert.True(t, sameLine(item, 10, &variantA))
	assert.False(t, sameLine(item, 10, &variantB))
	assert.False(t, sameLine(item, 10, nil))
	assert.False(t, sameLine(item, 11, &variantA))

	plain := SessionCartItem{ProductID: 10}
	assert.True(t, sameLine(plain, 10, nil))
	assert.False(t, sameLine(plain, 10, &variantA))
}
