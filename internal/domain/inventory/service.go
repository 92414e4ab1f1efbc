// internal/domain/inventory/service.go
package inventory

import (
	"fmt"

	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/pricing"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/gorm"
)

// InsufficientStockError reports a line that could not be reserved,
// with enough detail for a client to offer "only N left".
type InsufficientStockError struct {
	ProductID        uint
	ProductVariantID *uint
	SKU              string
	Available        int
	Requested        int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", e.SKU, e.Available, e.Requested)
}

// Service enforces the no-oversell rule. All decrements are single
// conditional updates evaluated by the database; stock is never read
// into memory, compared and written back.
type Service struct {
	db *gorm.DB
}

// NewService creates a new inventory service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Reserve decrements stock for every resolved line inside the caller's
// transaction. Each decrement is guarded by the database itself
// ("quantity >= requested, or backorder allowed"), so two concurrent
// reservations can never both succeed past the available stock. A
// failed line returns InsufficientStockError and the caller must roll
// back the whole transaction: there are no partial decrements.
func (s *Service) Reserve(tx *gorm.DB, lines []pricing.ResolvedLine, orderID uint) error {
	for _, line := range lines {
		var result *gorm.DB
		if line.VariantID != nil {
			result = tx.Model(&product.ProductVariant{}).
				Where("id = ? AND (allow_backorder = ? OR quantity >= ?)", *line.VariantID, true, line.Quantity).
				UpdateColumn("quantity", gorm.Expr("quantity - ?", line.Quantity))
		} else {
			result = tx.Model(&product.Product{}).
				Where("id = ? AND (allow_backorder = ? OR quantity >= ?)", line.ProductID, true, line.Quantity).
				UpdateColumn("quantity", gorm.Expr("quantity - ?", line.Quantity))
		}

		if result.Error != nil {
			return fmt.Errorf("failed to reserve stock for %s: %w", line.SKU, result.Error)
		}
		if result.RowsAffected == 0 {
			return s.insufficientStock(tx, line)
		}

		movement := StockMovement{
			ProductID:        line.ProductID,
			ProductVariantID: line.VariantID,
			MovementType:     MovementTypeReserve,
			Quantity:         line.Quantity,
			ReferenceType:    "order",
			ReferenceID:      orderID,
		}
		if err := tx.Create(&movement).Error; err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
	}
	return nil
}

// Release puts reserved quantities back, used by the payment-failure
// compensation path and by admin cancellation. Runs in its own
// transaction so a partial failure leaves nothing released.
func (s *Service) Release(items []ReleaseItem, orderID uint, reason string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, item := range items {
			var result *gorm.DB
			if item.ProductVariantID != nil {
				result = tx.Model(&product.ProductVariant{}).
					Where("id = ?", *item.ProductVariantID).
					UpdateColumn("quantity", gorm.Expr("quantity + ?", item.Quantity))
			} else {
				result = tx.Model(&product.Product{}).
					Where("id = ?", item.ProductID).
					UpdateColumn("quantity", gorm.Expr("quantity + ?", item.Quantity))
			}

			if result.Error != nil {
				return fmt.Errorf("failed to release stock for product %d: %w", item.ProductID, result.Error)
			}

			movement := StockMovement{
				ProductID:        item.ProductID,
				ProductVariantID: item.ProductVariantID,
				MovementType:     MovementTypeRelease,
				Quantity:         item.Quantity,
				ReferenceType:    "order",
				ReferenceID:      orderID,
				Notes:            reason,
			}
			if err := tx.Create(&movement).Error; err != nil {
				return fmt.Errorf("failed to record stock movement: %w", err)
			}
		}
		return nil
	})
}

// insufficientStock builds the error detail for a line whose
// conditional decrement matched no row.
func (s *Service) insufficientStock(tx *gorm.DB, line pricing.ResolvedLine) error {
	available := 0
	if line.VariantID != nil {
		var variant product.ProductVariant
		if err := tx.Select("quantity").Where("id = ?", *line.VariantID).First(&variant).Error; err == nil {
			available = variant.Quantity
		}
	} else {
		var prod product.Product
		if err := tx.Select("quantity").Where("id = ?", line.ProductID).First(&prod).Error; err == nil {
			available = prod.Quantity
		}
	}

	return &InsufficientStockError{
		ProductID:        line.ProductID,
		ProductVariantID: line.VariantID,
		SKU:              line.SKU,
		Available:        available,
		Requested:        line.Quantity,
	}
}
