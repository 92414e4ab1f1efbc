// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// Product represents a sellable product. Prices are in cents.
type Product struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	SKU            string         `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name           string         `gorm:"not null;size:255" json:"name"`
	Slug           string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description    string         `gorm:"type:text" json:"description"`
	Price          int64          `gorm:"not null" json:"price"`
	ComparePrice   int64          `json:"compare_price"`
	CategoryID     uint           `gorm:"not null;index" json:"category_id"`
	BrandID        *uint          `gorm:"index" json:"brand_id"`
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	Quantity       int            `gorm:"default:0" json:"quantity"`
	AllowBackorder bool           `gorm:"default:false" json:"allow_backorder"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Category Category         `gorm:"foreignKey:CategoryID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT;" json:"category"`
	Brand    *Brand           `gorm:"foreignKey:BrandID;constraint:OnUpdate:CASCADE,OnDelete:SET NULL;" json:"brand,omitempty"`
	Variants []ProductVariant `gorm:"foreignKey:ProductID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"variants,omitempty"`
}

// ProductVariant represents a purchasable configuration of a product
// (size, color, ...). A zero Price inherits the parent product price;
// stock and the backorder flag always belong to the variant itself.
type ProductVariant struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	ProductID      uint           `gorm:"not null;index" json:"product_id"`
	SKU            string         `gorm:"uniqueIndex;not null;size:100" json:"sku"`
	Name           string         `gorm:"not null;size:255" json:"name"`
	Price          int64          `json:"price"` // Override product price if set
	Quantity       int            `gorm:"default:0" json:"quantity"`
	AllowBackorder bool           `gorm:"default:false" json:"allow_backorder"`
	Options        string         `gorm:"type:text" json:"options"` // JSON string for variant options
	IsActive       bool           `gorm:"default:true" json:"is_active"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// Category represents product categories
type Category struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"not null;size:255" json:"name"`
	Slug        string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	Description string         `gorm:"type:text" json:"description"`
	ParentID    *uint          `gorm:"index" json:"parent_id"`
	SortOrder   int            `gorm:"default:0" json:"sort_order"`
	IsActive    bool           `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Parent   *Category  `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Children []Category `gorm:"foreignKey:ParentID" json:"children,omitempty"`
}

// Brand represents product brands
type Brand struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	Name      string         `gorm:"not null;size:255" json:"name"`
	Slug      string         `gorm:"uniqueIndex;not null;size:255" json:"slug"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides
func (Product) TableName() string        { return "products" }
func (ProductVariant) TableName() string { return "product_variants" }
func (Category) TableName() string       { return "categories" }
func (Brand) TableName() string          { return "brands" }

// Business methods

// EffectivePrice returns the variant price, falling back to the product
// price when the variant does not carry its own.
func (v *ProductVariant) EffectivePrice(p *Product) int64 {
	if v.Price > 0 {
		return v.Price
	}
	return p.Price
}

func (p *Product) IsInStock() bool {
	return p.Quantity > 0 || p.AllowBackorder
}

func (p *Product) GetFormattedPrice() float64 {
	return float64(p.Price) / 100
}
