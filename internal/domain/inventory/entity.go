// internal/domain/inventory/entity.go
package inventory

import (
	"time"
)

// MovementType represents the type of stock movement
type MovementType string

const (
	MovementTypeReserve MovementType = "reserve" // Checkout decrement
	MovementTypeRelease MovementType = "release" // Compensation / cancellation increment
)

// StockMovement is the audit record written alongside every stock
// decrement and release. Reference is the order the movement belongs to.
type StockMovement struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	ProductID        uint         `gorm:"not null;index" json:"product_id"`
	ProductVariantID *uint        `gorm:"index" json:"product_variant_id"`
	MovementType     MovementType `gorm:"not null;size:20" json:"movement_type"`
	Quantity         int          `gorm:"not null" json:"quantity"`
	ReferenceType    string       `gorm:"size:50" json:"reference_type"`
	ReferenceID      uint         `gorm:"index" json:"reference_id"`
	Notes            string       `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time    `json:"created_at"`
}

// TableName overrides the table name
func (StockMovement) TableName() string {
	return "stock_movements"
}

// ReleaseItem identifies a quantity to put back on the shelf.
type ReleaseItem struct {
	ProductID        uint
	ProductVariantID *uint
	Quantity         int
}
