// internal/domain/pricing/resolver.go
package pricing

import (
	"errors"
	"fmt"

	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/cart"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/gorm"
)

// NotFoundError is returned when a cart line references a product or
// variant that no longer exists or is inactive. It aborts the whole
// resolution: a checkout must never silently skip a line.
type NotFoundError struct {
	ProductID uint
	VariantID *uint
}

func (e *NotFoundError) Error() string {
	if e.VariantID != nil {
		return fmt.Sprintf("product variant %d (product %d) not found or inactive", *e.VariantID, e.ProductID)
	}
	return fmt.Sprintf("product %d not found or inactive", e.ProductID)
}

// ResolvedLine is a cart line with its effective price, availability and
// display snapshot resolved against the catalog.
type ResolvedLine struct {
	ProductID      uint   `json:"product_id"`
	VariantID      *uint  `json:"product_variant_id,omitempty"`
	SKU            string `json:"sku"`
	DisplayName    string `json:"display_name"`
	UnitPrice      int64  `json:"unit_price"` // In cents
	Quantity       int    `json:"quantity"`
	AvailableStock int    `json:"available_stock"`
	AllowBackorder bool   `json:"allow_backorder"`
}

// LineTotal returns unit price times quantity.
func (l ResolvedLine) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// Resolver resolves cart lines against the catalog
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a new pricing resolver
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// ResolveLines resolves every cart line, failing on the first missing
// product or variant. Pass the checkout transaction so resolution sees
// the same snapshot the reservation will act on.
func (r *Resolver) ResolveLines(tx *gorm.DB, lines []cart.Line) ([]ResolvedLine, error) {
	if tx == nil {
		tx = r.db
	}

	resolved := make([]ResolvedLine, 0, len(lines))
	for _, line := range lines {
		var prod product.Product
		err := tx.Where("id = ? AND is_active = ?", line.ProductID, true).First(&prod).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &NotFoundError{ProductID: line.ProductID}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load product %d: %w", line.ProductID, err)
		}

		var variant *product.ProductVariant
		if line.ProductVariantID != nil {
			var v product.ProductVariant
			err := tx.Where("id = ? AND product_id = ? AND is_active = ?",
				*line.ProductVariantID, line.ProductID, true).First(&v).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &NotFoundError{ProductID: line.ProductID, VariantID: line.ProductVariantID}
			}
			if err != nil {
				return nil, fmt.Errorf("failed to load variant %d: %w", *line.ProductVariantID, err)
			}
			variant = &v
		}

		resolved = append(resolved, Resolve(&prod, variant, line.Quantity))
	}

	return resolved, nil
}

// Resolve builds the resolved line for a product and optional variant.
// The variant's price wins when set, falling back to the product price;
// stock and the backorder flag always come from the variant when one is
// referenced.
func Resolve(prod *product.Product, variant *product.ProductVariant, quantity int) ResolvedLine {
	line := ResolvedLine{
		ProductID:      prod.ID,
		SKU:            prod.SKU,
		DisplayName:    prod.Name,
		UnitPrice:      prod.Price,
		Quantity:       quantity,
		AvailableStock: prod.Quantity,
		AllowBackorder: prod.AllowBackorder,
	}

	if variant != nil {
		line.VariantID = &variant.ID
		line.SKU = variant.SKU
		line.DisplayName = fmt.Sprintf("%s - %s", prod.Name, variant.Name)
		line.UnitPrice = variant.EffectivePrice(prod)
		line.AvailableStock = variant.Quantity
		line.AllowBackorder = variant.AllowBackorder
	}

	return line
}
