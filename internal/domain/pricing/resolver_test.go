package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
)

func TestResolve_ProductOnly(t *testing.T) {
	prod := &product.Product{
		ID:             7,
		SKU:            "SCRUB-SET-CLASSIC",
		Name:           "Classic Scrub Set",
		Price:          4599,
		Quantity:       12,
		AllowBackorder: false,
	}

	line := Resolve(prod, nil, 2)

	assert.Equal(t, uint(7), line.ProductID)
	assert.Nil(t, line.VariantID)
	assert.Equal(t, "SCRUB-SET-CLASSIC", line.SKU)
	assert.Equal(t, "Classic Scrub Set", line.DisplayName)
	assert.Equal(t, int64(4599), line.UnitPrice)
	assert.Equal(t, 12, line.AvailableStock)
	assert.False(t, line.AllowBackorder)
	assert.Equal(t, int64(9198), line.LineTotal())
}

func TestResolve_VariantPriceOverrides(t *testing.T) {
	prod := &product.Product{ID: 7, SKU: "TOP", Name: "Flex Scrub Top", Price: 2499, Quantity: 50}
	variant := &product.ProductVariant{
		ID:       31,
		SKU:      "TOP-M-NAVY",
		Name:     "Medium / Navy",
		Price:    2699,
		Quantity: 4,
	}

	line := Resolve(prod, variant, 1)

	assert.Equal(t, uint(31), *line.VariantID)
	assert.Equal(t, "TOP-M-NAVY", line.SKU)
	assert.Equal(t, "Flex Scrub Top - Medium / Navy", line.DisplayName)
	assert.Equal(t, int64(2699), line.UnitPrice)
	assert.Equal(t, 4, line.AvailableStock, "stock comes from the variant, not the product")
}

func TestResolve_VariantInheritsProductPrice(t *testing.T) {
	prod := &product.Product{ID: 7, SKU: "TOP", Name: "Flex Scrub Top", Price: 2499, Quantity: 50}
	variant := &product.ProductVariant{
		ID:             31,
		SKU:            "TOP-L-NAVY",
		Name:           "Large / Navy",
		Price:          0, // Inherit
		Quantity:       9,
		AllowBackorder: true,
	}

	line := Resolve(prod, variant, 3)

	assert.Equal(t, int64(2499), line.UnitPrice)
	assert.True(t, line.AllowBackorder, "backorder flag comes from the variant")
	assert.Equal(t, int64(7497), line.LineTotal())
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{ProductID: 5}
	assert.Contains(t, err.Error(), "product 5")

	variantID := uint(11)
	err = &NotFoundError{ProductID: 5, VariantID: &variantID}
	assert.Contains(t, err.Error(), "variant 11")
}
