// internal/domain/coupon/entity.go
package coupon

import (
	"time"

	"gorm.io/gorm"
)

// DiscountType represents how a coupon's value is interpreted
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
)

// Coupon represents a discount rule. For percentage coupons Value is a
// percentage (10 = 10%); for fixed_amount coupons Value is in cents.
// UsedCount only ever increases and never exceeds UsageLimit when one
// is set.
type Coupon struct {
	ID            uint           `gorm:"primaryKey" json:"id"`
	Code          string         `gorm:"uniqueIndex;not null;size:50" json:"code"`
	Type          DiscountType   `gorm:"not null;size:20" json:"type"`
	Value         float64        `gorm:"not null" json:"value"`
	MinimumAmount int64          `gorm:"default:0" json:"minimum_amount"` // In cents
	StartsAt      time.Time      `gorm:"not null" json:"starts_at"`
	EndsAt        *time.Time     `json:"ends_at,omitempty"` // Nil = open-ended
	UsageLimit    *int           `json:"usage_limit,omitempty"`
	UsedCount     int            `gorm:"default:0" json:"used_count"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName overrides the table name
func (Coupon) TableName() string {
	return "coupons"
}

// HasUsageLeft reports whether the coupon can still be redeemed.
func (c *Coupon) HasUsageLeft() bool {
	return c.UsageLimit == nil || c.UsedCount < *c.UsageLimit
}
