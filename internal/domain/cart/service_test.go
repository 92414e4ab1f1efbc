package cart

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func cartTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&product.Category{},
		&product.Brand{},
		&product.Product{},
		&product.ProductVariant{},
		&Item{},
	))
	return db
}

func seedCartProduct(t *testing.T, db *gorm.DB) {
	t.Helper()

	require.NoError(t, db.Create(&product.Product{
		SKU:        "SCRUB-SET-CLASSIC",
		Name:       "Classic Scrub Set",
		Slug:       "classic-scrub-set",
		Price:      4599,
		CategoryID: 1,
		IsActive:   true,
		Quantity:   50,
	}).Error)
}

func seedCartVariant(t *testing.T, db *gorm.DB) {
	t.Helper()

	require.NoError(t, db.Create(&product.ProductVariant{
		ProductID: 1,
		SKU:       "SCRUB-SET-CLASSIC-M",
		Name:      "Medium",
		Quantity:  20,
		IsActive:  true,
	}).Error)
}

// A simple product (no variant) added twice to a user cart must merge
// into one line, not duplicate.
func TestAddToCart_MergesSimpleProductLine(t *testing.T) {
	db := cartTestDB(t)
	seedCartProduct(t, db)
	svc := NewService(db, nil, &config.Config{})
	userID := uint(7)
	ref := Ref{UserID: &userID}

	_, err := svc.AddToCart(context.Background(), ref, &AddToCartRequest{ProductID: 1, Quantity: 1})
	require.NoError(t, err)

	resp, err := svc.AddToCart(context.Background(), ref, &AddToCartRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.Len(t, resp.Items, 1)
	assert.Equal(t, 3, resp.Items[0].Quantity)

	var count int64
	require.NoError(t, db.Model(&Item{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdateCartItem_SimpleProductLine(t *testing.T) {
	db := cartTestDB(t)
	seedCartProduct(t, db)
	svc := NewService(db, nil, &config.Config{})
	userID := uint(7)
	ref := Ref{UserID: &userID}
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, ref, &AddToCartRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	resp, err := svc.UpdateCartItem(ctx, ref, 1, nil, &UpdateCartItemRequest{Quantity: 5})
	require.NoError(t, err)
	require.Len(t, resp.Items, 1)
	assert.Equal(t, 5, resp.Items[0].Quantity)

	// Quantity zero removes the line
	resp, err = svc.UpdateCartItem(ctx, ref, 1, nil, &UpdateCartItemRequest{Quantity: 0})
	require.NoError(t, err)
	assert.Empty(t, resp.Items)
}

func TestUpdateCartItem_MissingLine(t *testing.T) {
	db := cartTestDB(t)
	seedCartProduct(t, db)
	svc := NewService(db, nil, &config.Config{})
	userID := uint(7)
	ref := Ref{UserID: &userID}

	_, err := svc.UpdateCartItem(context.Background(), ref, 1, nil, &UpdateCartItemRequest{Quantity: 2})

	assert.ErrorIs(t, err, ErrItemNotFound)
}

// A product line and a variant line of the same product are distinct
// cart lines; touching one must not touch the other.
func TestCartLines_VariantAndSimpleStayDistinct(t *testing.T) {
	db := cartTestDB(t)
	seedCartProduct(t, db)
	seedCartVariant(t, db)
	svc := NewService(db, nil, &config.Config{})
	userID := uint(7)
	ref := Ref{UserID: &userID}
	ctx := context.Background()
	variantID := uint(1)

	_, err := svc.AddToCart(ctx, ref, &AddToCartRequest{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	resp, err := svc.AddToCart(ctx, ref, &AddToCartRequest{ProductID: 1, ProductVariantID: &variantID, Quantity: 2})
	require.NoError(t, err)
	require.Len(t, resp.Items, 2)

	resp, err = svc.UpdateCartItem(ctx, ref, 1, &variantID, &UpdateCartItemRequest{Quantity: 4})
	require.NoError(t, err)

	quantities := map[bool]int{}
	for _, item := range resp.Items {
		quantities[item.ProductVariantID != nil] = item.Quantity
	}
	assert.Equal(t, 1, quantities[false], "simple line untouched")
	assert.Equal(t, 4, quantities[true], "variant line updated")
}

func TestMergeGuestCartToUser_MergesSimpleLines(t *testing.T) {
	db := cartTestDB(t)
	seedCartProduct(t, db)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	svc := NewService(db, client, &config.Config{})
	userID := uint(7)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, Ref{UserID: &userID}, &AddToCartRequest{ProductID: 1, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, Ref{SessionID: "sess-merge"}, &AddToCartRequest{ProductID: 1, Quantity: 2})
	require.NoError(t, err)

	require.NoError(t, svc.MergeGuestCartToUser(ctx, userID, "sess-merge"))

	lines, err := svc.GetLines(ctx, Ref{UserID: &userID})
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	guestLines, err := svc.GetLines(ctx, Ref{SessionID: "sess-merge"})
	require.NoError(t, err)
	assert.Empty(t, guestLines)
}
