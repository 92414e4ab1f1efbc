package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/pricing"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func inventoryTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&product.Product{},
		&product.ProductVariant{},
		&StockMovement{},
	))
	return db
}

func seedStockedProduct(t *testing.T, db *gorm.DB, sku string, quantity int, allowBackorder bool) uint {
	t.Helper()

	p := product.Product{
		SKU:            sku,
		Name:           sku,
		Slug:           sku,
		Price:          2500,
		CategoryID:     1,
		IsActive:       true,
		Quantity:       quantity,
		AllowBackorder: allowBackorder,
	}
	require.NoError(t, db.Create(&p).Error)
	return p.ID
}

func productQuantity(t *testing.T, db *gorm.DB, id uint) int {
	t.Helper()

	var p product.Product
	require.NoError(t, db.First(&p, id).Error)
	return p.Quantity
}

func movementCount(t *testing.T, db *gorm.DB, movementType MovementType) int64 {
	t.Helper()

	var count int64
	require.NoError(t, db.Model(&StockMovement{}).
		Where("movement_type = ?", movementType).Count(&count).Error)
	return count
}

func TestReserve_DecrementsStockAndRecordsMovement(t *testing.T) {
	db := inventoryTestDB(t)
	id := seedStockedProduct(t, db, "SCRUB-SET-CLASSIC", 10, false)
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []pricing.ResolvedLine{
			{ProductID: id, SKU: "SCRUB-SET-CLASSIC", UnitPrice: 2500, Quantity: 3},
		}, 42)
	})
	require.NoError(t, err)

	assert.Equal(t, 7, productQuantity(t, db, id))
	assert.Equal(t, int64(1), movementCount(t, db, MovementTypeReserve))

	var movement StockMovement
	require.NoError(t, db.First(&movement).Error)
	assert.Equal(t, 3, movement.Quantity)
	assert.Equal(t, uint(42), movement.ReferenceID)
	assert.Equal(t, "order", movement.ReferenceType)
}

func TestReserve_InsufficientStock(t *testing.T) {
	db := inventoryTestDB(t)
	id := seedStockedProduct(t, db, "SCRUB-SET-CLASSIC", 2, false)
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []pricing.ResolvedLine{
			{ProductID: id, SKU: "SCRUB-SET-CLASSIC", UnitPrice: 2500, Quantity: 5},
		}, 42)
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "SCRUB-SET-CLASSIC", stockErr.SKU)
	assert.Equal(t, 2, stockErr.Available)
	assert.Equal(t, 5, stockErr.Requested)

	// Rolled back, nothing moved
	assert.Equal(t, 2, productQuantity(t, db, id))
	assert.Equal(t, int64(0), movementCount(t, db, MovementTypeReserve))
}

// A failed line must roll back every earlier decrement in the same
// reservation; there are no partial reservations.
func TestReserve_PartialFailureRollsBackAllLines(t *testing.T) {
	db := inventoryTestDB(t)
	firstID := seedStockedProduct(t, db, "SCRUB-SET-CLASSIC", 10, false)
	secondID := seedStockedProduct(t, db, "LAB-COAT-PRO", 1, false)
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []pricing.ResolvedLine{
			{ProductID: firstID, SKU: "SCRUB-SET-CLASSIC", UnitPrice: 2500, Quantity: 2},
			{ProductID: secondID, SKU: "LAB-COAT-PRO", UnitPrice: 5999, Quantity: 3},
		}, 42)
	})

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "LAB-COAT-PRO", stockErr.SKU)

	assert.Equal(t, 10, productQuantity(t, db, firstID))
	assert.Equal(t, 1, productQuantity(t, db, secondID))
	assert.Equal(t, int64(0), movementCount(t, db, MovementTypeReserve))
}

// Backorderable products reserve past zero.
func TestReserve_BackorderGoesNegative(t *testing.T) {
	db := inventoryTestDB(t)
	id := seedStockedProduct(t, db, "SCRUB-SET-CLASSIC", 1, true)
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []pricing.ResolvedLine{
			{ProductID: id, SKU: "SCRUB-SET-CLASSIC", UnitPrice: 2500, Quantity: 4, AllowBackorder: true},
		}, 42)
	})
	require.NoError(t, err)

	assert.Equal(t, -3, productQuantity(t, db, id))
	assert.Equal(t, int64(1), movementCount(t, db, MovementTypeReserve))
}

// Variant stock is tracked on the variant row; the parent product's
// quantity is untouched.
func TestReserve_VariantLeavesProductUntouched(t *testing.T) {
	db := inventoryTestDB(t)
	id := seedStockedProduct(t, db, "SCRUB-SET-CLASSIC", 10, false)
	variant := product.ProductVariant{
		ProductID: id,
		SKU:       "SCRUB-SET-CLASSIC-M",
		Name:      "Medium",
		Quantity:  5,
		IsActive:  true,
	}
	require.NoError(t, db.Create(&variant).Error)
	svc := NewService(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Reserve(tx, []pricing.ResolvedLine{
			{ProductID: id, VariantID: &variant.ID, SKU: "SCRUB-SET-CLASSIC-M", UnitPrice: 2500, Quantity: 2},
		}, 42)
	})
	require.NoError(t, err)

	var reloaded product.ProductVariant
	require.NoError(t, db.First(&reloaded, variant.ID).Error)
	assert.Equal(t, 3, reloaded.Quantity)
	assert.Equal(t, 10, productQuantity(t, db, id))
}

func TestRelease_RestoresStockAndRecordsMovement(t *testing.T) {
	db := inventoryTestDB(t)
	id := seedStockedProduct(t, db, "SCRUB-SET-CLASSIC", 7, false)
	svc := NewService(db)

	err := svc.Release([]ReleaseItem{
		{ProductID: id, Quantity: 3},
	}, 42, "payment declined")
	require.NoError(t, err)

	assert.Equal(t, 10, productQuantity(t, db, id))
	assert.Equal(t, int64(1), movementCount(t, db, MovementTypeRelease))

	var movement StockMovement
	require.NoError(t, db.Where("movement_type = ?", MovementTypeRelease).First(&movement).Error)
	assert.Equal(t, "payment declined", movement.Notes)
	assert.Equal(t, uint(42), movement.ReferenceID)
}

func TestInsufficientStockError_Message(t *testing.T) {
	err := &InsufficientStockError{
		ProductID: 3,
		SKU:       "SCRUB-SET-CLASSIC",
		Available: 2,
		Requested: 5,
	}

	assert.Contains(t, err.Error(), "SCRUB-SET-CLASSIC")
	assert.Contains(t, err.Error(), "available 2")
	assert.Contains(t, err.Error(), "requested 5")
}
