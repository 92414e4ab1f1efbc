// internal/domain/cart/entity.go
package cart

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Ref identifies a cart. It is passed explicitly through every call:
// either an authenticated user's cart (UserID set) or a guest session
// cart (SessionID set). Never both empty.
type Ref struct {
	UserID    *uint
	SessionID string
}

// IsGuest reports whether the ref points at a guest session cart.
func (r Ref) IsGuest() bool {
	return r.UserID == nil
}

// Valid reports whether the ref identifies any cart at all.
func (r Ref) Valid() bool {
	return r.UserID != nil || r.SessionID != ""
}

// Key returns the Redis key for a guest session cart.
func (r Ref) Key() string {
	return fmt.Sprintf("cart:session:%s", r.SessionID)
}

// CouponKey returns the Redis key holding the coupon code attached to
// this cart.
func (r Ref) CouponKey() string {
	if r.UserID != nil {
		return fmt.Sprintf("cart:coupon:user:%d", *r.UserID)
	}
	return fmt.Sprintf("cart:coupon:session:%s", r.SessionID)
}

// Item represents a cart line stored in the database for authenticated
// users. Unique per (user, product, variant).
type Item struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	UserID           *uint          `gorm:"index:idx_cart_items_line,unique" json:"user_id"`
	ProductID        uint           `gorm:"not null;index:idx_cart_items_line,unique" json:"product_id"`
	ProductVariantID *uint          `gorm:"index:idx_cart_items_line,unique" json:"product_variant_id"`
	Quantity         int            `gorm:"not null;default:1" json:"quantity"`
	Price            int64          `gorm:"not null" json:"price"` // Price at time of adding
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Item) TableName() string {
	return "cart_items"
}

// SessionCart represents a cart for guest users (stored in Redis)
type SessionCart struct {
	SessionID string            `json:"session_id"`
	Items     []SessionCartItem `json:"items"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// SessionCartItem represents a cart line for guest users
type SessionCartItem struct {
	ProductID        uint      `json:"product_id"`
	ProductVariantID *uint     `json:"product_variant_id,omitempty"`
	Quantity         int       `json:"quantity"`
	Price            int64     `json:"price"`
	AddedAt          time.Time `json:"added_at"`
}

// Line is the storage-independent view of a cart line handed to the
// checkout path.
type Line struct {
	ProductID        uint      `json:"product_id"`
	ProductVariantID *uint     `json:"product_variant_id,omitempty"`
	Quantity         int       `json:"quantity"`
	Price            int64     `json:"price"`
	AddedAt          time.Time `json:"added_at"`
}
