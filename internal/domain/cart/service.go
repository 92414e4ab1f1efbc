// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/gorm"
)

const sessionCartTTL = 24 * time.Hour

// ErrItemNotFound is returned when an update targets a line that is not
// in the cart.
var ErrItemNotFound = errors.New("item not found in cart")

// Service handles cart business logic
type Service struct {
	db          *gorm.DB
	redisClient *redis.Client
	config      *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:          db,
		redisClient: redisClient,
		config:      cfg,
	}
}

// AddToCartRequest represents add to cart request
type AddToCartRequest struct {
	ProductID        uint  `json:"product_id" binding:"required"`
	ProductVariantID *uint `json:"product_variant_id"`
	Quantity         int   `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest represents update cart item request
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"min=0"`
}

// CartResponse represents a shopping cart with its lines
type CartResponse struct {
	SessionID string    `json:"session_id,omitempty"`
	UserID    *uint     `json:"user_id,omitempty"`
	Items     []Line    `json:"items"`
	Subtotal  int64     `json:"subtotal"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetLines returns the current cart lines for the given cart ref.
func (s *Service) GetLines(ctx context.Context, ref Ref) ([]Line, error) {
	if !ref.Valid() {
		return nil, fmt.Errorf("cart ref is empty")
	}

	if !ref.IsGuest() {
		var dbItems []Item
		err := s.db.WithContext(ctx).Where("user_id = ?", *ref.UserID).Order("created_at").Find(&dbItems).Error
		if err != nil {
			return nil, fmt.Errorf("failed to retrieve user cart: %w", err)
		}

		lines := make([]Line, len(dbItems))
		for i, item := range dbItems {
			lines[i] = Line{
				ProductID:        item.ProductID,
				ProductVariantID: item.ProductVariantID,
				Quantity:         item.Quantity,
				Price:            item.Price,
				AddedAt:          item.CreatedAt,
			}
		}
		return lines, nil
	}

	sessionCart, err := s.getGuestCart(ctx, ref)
	if err != nil {
		return nil, err
	}

	lines := make([]Line, len(sessionCart.Items))
	for i, item := range sessionCart.Items {
		lines[i] = Line{
			ProductID:        item.ProductID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
			Price:            item.Price,
			AddedAt:          item.AddedAt,
		}
	}
	return lines, nil
}

// GetCart retrieves the cart with a computed subtotal.
func (s *Service) GetCart(ctx context.Context, ref Ref) (*CartResponse, error) {
	lines, err := s.GetLines(ctx, ref)
	if err != nil {
		return nil, err
	}

	var subtotal int64
	for _, line := range lines {
		subtotal += line.Price * int64(line.Quantity)
	}

	return &CartResponse{
		SessionID: ref.SessionID,
		UserID:    ref.UserID,
		Items:     lines,
		Subtotal:  subtotal,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// AddToCart adds an item to the cart. Adding an already-present
// (product, variant) line increments its quantity instead of
// duplicating it.
func (s *Service) AddToCart(ctx context.Context, ref Ref, req *AddToCartRequest) (*CartResponse, error) {
	// Validate product exists and is active
	var prod product.Product
	result := s.db.WithContext(ctx).Where("id = ? AND is_active = ?", req.ProductID, true).First(&prod)
	if result.Error != nil {
		return nil, fmt.Errorf("product not found or inactive")
	}

	// Validate variant if specified
	var variant *product.ProductVariant
	if req.ProductVariantID != nil {
		var v product.ProductVariant
		result := s.db.WithContext(ctx).Where("id = ? AND product_id = ? AND is_active = ?",
			*req.ProductVariantID, req.ProductID, true).First(&v)
		if result.Error != nil {
			return nil, fmt.Errorf("product variant not found or inactive")
		}
		variant = &v
	}

	// Advisory availability check. The reservation at checkout is the
	// authoritative enforcement point.
	available := prod.Quantity
	backorder := prod.AllowBackorder
	itemPrice := prod.Price
	if variant != nil {
		available = variant.Quantity
		backorder = variant.AllowBackorder
		itemPrice = variant.EffectivePrice(&prod)
	}

	if !backorder && available < req.Quantity {
		return nil, fmt.Errorf("insufficient inventory. Available: %d", available)
	}

	if !ref.IsGuest() {
		if err := s.addToUserCart(ctx, *ref.UserID, req.ProductID, req.ProductVariantID, req.Quantity, itemPrice, available, backorder); err != nil {
			return nil, err
		}
	} else {
		if err := s.addToGuestCart(ctx, ref, req.ProductID, req.ProductVariantID, req.Quantity, itemPrice, available, backorder); err != nil {
			return nil, err
		}
	}

	return s.GetCart(ctx, ref)
}

// UpdateCartItem updates the quantity of a cart line. Quantity zero
// removes the line.
func (s *Service) UpdateCartItem(ctx context.Context, ref Ref, productID uint, variantID *uint, req *UpdateCartItemRequest) (*CartResponse, error) {
	if req.Quantity < 0 {
		return nil, fmt.Errorf("quantity cannot be negative")
	}

	if req.Quantity > 0 {
		var prod product.Product
		if err := s.db.WithContext(ctx).Where("id = ?", productID).First(&prod).Error; err != nil {
			return nil, fmt.Errorf("product not found")
		}

		available := prod.Quantity
		backorder := prod.AllowBackorder
		if variantID != nil {
			var variant product.ProductVariant
			if err := s.db.WithContext(ctx).Where("id = ?", *variantID).First(&variant).Error; err != nil {
				return nil, fmt.Errorf("product variant not found")
			}
			available = variant.Quantity
			backorder = variant.AllowBackorder
		}

		if !backorder && available < req.Quantity {
			return nil, fmt.Errorf("insufficient inventory. Available: %d", available)
		}
	}

	if !ref.IsGuest() {
		if err := s.updateUserCartItem(ctx, *ref.UserID, productID, variantID, req.Quantity); err != nil {
			return nil, err
		}
	} else {
		if err := s.updateGuestCartItem(ctx, ref, productID, variantID, req.Quantity); err != nil {
			return nil, err
		}
	}

	return s.GetCart(ctx, ref)
}

// RemoveFromCart removes a line from the cart
func (s *Service) RemoveFromCart(ctx context.Context, ref Ref, productID uint, variantID *uint) (*CartResponse, error) {
	return s.UpdateCartItem(ctx, ref, productID, variantID, &UpdateCartItemRequest{Quantity: 0})
}

// ClearCart removes all lines from the cart and detaches any coupon.
func (s *Service) ClearCart(ctx context.Context, ref Ref) error {
	if err := s.redisClient.Del(ctx, ref.CouponKey()).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to detach coupon: %w", err)
	}

	if !ref.IsGuest() {
		return s.db.WithContext(ctx).Where("user_id = ?", *ref.UserID).Delete(&Item{}).Error
	}
	return s.redisClient.Del(ctx, ref.Key()).Err()
}

// MergeGuestCartToUser merges a guest session cart into the user cart
// when the user logs in.
func (s *Service) MergeGuestCartToUser(ctx context.Context, userID uint, sessionID string) error {
	guestRef := Ref{SessionID: sessionID}
	guestCart, err := s.getGuestCart(ctx, guestRef)
	if err != nil || len(guestCart.Items) == 0 {
		return nil // No guest cart to merge
	}

	for _, guestItem := range guestCart.Items {
		var existingItem Item
		result := userLineQuery(s.db.WithContext(ctx), userID, guestItem.ProductID, guestItem.ProductVariantID).First(&existingItem)

		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			newItem := Item{
				UserID:           &userID,
				ProductID:        guestItem.ProductID,
				ProductVariantID: guestItem.ProductVariantID,
				Quantity:         guestItem.Quantity,
				Price:            guestItem.Price,
			}
			if err := s.db.WithContext(ctx).Create(&newItem).Error; err != nil {
				return fmt.Errorf("failed to merge cart item: %w", err)
			}
		} else {
			existingItem.Quantity += guestItem.Quantity
			if err := s.db.WithContext(ctx).Save(&existingItem).Error; err != nil {
				return fmt.Errorf("failed to merge cart item: %w", err)
			}
		}
	}

	return s.ClearCart(ctx, guestRef)
}

// Private helper methods

func (s *Service) addToUserCart(ctx context.Context, userID, productID uint, variantID *uint, quantity int, price int64, available int, backorder bool) error {
	var existingItem Item
	result := userLineQuery(s.db.WithContext(ctx), userID, productID, variantID).First(&existingItem)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		newItem := Item{
			UserID:           &userID,
			ProductID:        productID,
			ProductVariantID: variantID,
			Quantity:         quantity,
			Price:            price,
		}
		return s.db.WithContext(ctx).Create(&newItem).Error
	}

	newQuantity := existingItem.Quantity + quantity
	if !backorder && available < newQuantity {
		return fmt.Errorf("insufficient inventory for total quantity. Available: %d", available)
	}

	existingItem.Quantity = newQuantity
	existingItem.Price = price // Update price in case it changed
	return s.db.WithContext(ctx).Save(&existingItem).Error
}

func (s *Service) addToGuestCart(ctx context.Context, ref Ref, productID uint, variantID *uint, quantity int, price int64, available int, backorder bool) error {
	sessionCart, err := s.getGuestCart(ctx, ref)
	if err != nil {
		return err
	}

	itemExists := false
	for i := range sessionCart.Items {
		if !sameLine(sessionCart.Items[i], productID, variantID) {
			continue
		}

		newQuantity := sessionCart.Items[i].Quantity + quantity
		if !backorder && available < newQuantity {
			return fmt.Errorf("insufficient inventory for total quantity. Available: %d", available)
		}

		sessionCart.Items[i].Quantity = newQuantity
		sessionCart.Items[i].Price = price
		itemExists = true
		break
	}

	if !itemExists {
		sessionCart.Items = append(sessionCart.Items, SessionCartItem{
			ProductID:        productID,
			ProductVariantID: variantID,
			Quantity:         quantity,
			Price:            price,
			AddedAt:          time.Now().UTC(),
		})
	}

	sessionCart.UpdatedAt = time.Now().UTC()
	return s.saveGuestCart(ctx, ref, sessionCart)
}

func (s *Service) updateUserCartItem(ctx context.Context, userID, productID uint, variantID *uint, quantity int) error {
	if quantity == 0 {
		return userLineQuery(s.db.WithContext(ctx), userID, productID, variantID).Delete(&Item{}).Error
	}
	result := userLineQuery(s.db.WithContext(ctx).Model(&Item{}), userID, productID, variantID).
		Update("quantity", quantity)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *Service) updateGuestCartItem(ctx context.Context, ref Ref, productID uint, variantID *uint, quantity int) error {
	sessionCart, err := s.getGuestCart(ctx, ref)
	if err != nil {
		return err
	}

	itemFound := false
	for i := range sessionCart.Items {
		if !sameLine(sessionCart.Items[i], productID, variantID) {
			continue
		}

		if quantity == 0 {
			sessionCart.Items = append(sessionCart.Items[:i], sessionCart.Items[i+1:]...)
		} else {
			sessionCart.Items[i].Quantity = quantity
		}
		itemFound = true
		break
	}

	if !itemFound {
		return ErrItemNotFound
	}

	sessionCart.UpdatedAt = time.Now().UTC()
	return s.saveGuestCart(ctx, ref, sessionCart)
}

// userLineQuery scopes a query to one (user, product, variant) line in
// the DB-backed cart. A nil variant must match SQL NULL; binding the
// nil pointer would render "= NULL" and never match.
func userLineQuery(db *gorm.DB, userID, productID uint, variantID *uint) *gorm.DB {
	q := db.Where("user_id = ? AND product_id = ?", userID, productID)
	if variantID == nil {
		return q.Where("product_variant_id IS NULL")
	}
	return q.Where("product_variant_id = ?", *variantID)
}

func sameLine(item SessionCartItem, productID uint, variantID *uint) bool {
	if item.ProductID != productID {
		return false
	}
	if item.ProductVariantID == nil && variantID == nil {
		return true
	}
	return item.ProductVariantID != nil && variantID != nil && *item.ProductVariantID == *variantID
}

func (s *Service) getGuestCart(ctx context.Context, ref Ref) (*SessionCart, error) {
	if ref.SessionID == "" {
		return nil, fmt.Errorf("session ID required for guest cart")
	}

	cartData, err := s.redisClient.Get(ctx, ref.Key()).Result()
	if err == redis.Nil {
		// Cart doesn't exist, return empty cart
		return &SessionCart{
			SessionID: ref.SessionID,
			Items:     []SessionCartItem{},
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
			ExpiresAt: time.Now().UTC().Add(sessionCartTTL),
		}, nil
	} else if err != nil {
		return nil, err
	}

	var sessionCart SessionCart
	if err := json.Unmarshal([]byte(cartData), &sessionCart); err != nil {
		return nil, err
	}

	return &sessionCart, nil
}

func (s *Service) saveGuestCart(ctx context.Context, ref Ref, sessionCart *SessionCart) error {
	cartData, err := json.Marshal(sessionCart)
	if err != nil {
		return err
	}
	return s.redisClient.Set(ctx, ref.Key(), cartData, sessionCartTTL).Err()
}
