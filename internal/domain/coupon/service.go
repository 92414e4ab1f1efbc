// internal/domain/coupon/service.go
package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Validation failure reasons, ordered from most to least specific so the
// caller can show the clearest message.
const (
	ReasonNotFound      = "not_found"
	ReasonExpired       = "expired"
	ReasonNotYetActive  = "not_yet_active"
	ReasonUsageExceeded = "usage_limit_exceeded"
	ReasonMinimumNotMet = "minimum_amount_not_met"
)

// ValidationError describes why a coupon cannot be applied.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonNotFound:
		return fmt.Sprintf("coupon '%s' not found or inactive", e.Code)
	case ReasonExpired:
		return fmt.Sprintf("coupon '%s' has expired", e.Code)
	case ReasonNotYetActive:
		return fmt.Sprintf("coupon '%s' is not yet active", e.Code)
	case ReasonUsageExceeded:
		return fmt.Sprintf("coupon '%s' has reached its usage limit", e.Code)
	case ReasonMinimumNotMet:
		return fmt.Sprintf("coupon '%s' requires a higher order amount", e.Code)
	}
	return fmt.Sprintf("coupon '%s' is not applicable", e.Code)
}

// Service handles coupon lookup, validation and usage accounting
type Service struct {
	db *gorm.DB
}

// NewService creates a new coupon service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// FindByCode loads an active coupon by its code. A missing or inactive
// coupon yields a ValidationError with ReasonNotFound.
func (s *Service) FindByCode(ctx context.Context, code string) (*Coupon, error) {
	var c Coupon
	err := s.db.WithContext(ctx).Where("code = ? AND is_active = ?", code, true).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &ValidationError{Code: code, Reason: ReasonNotFound}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load coupon: %w", err)
	}
	return &c, nil
}

// Evaluate validates the coupon against its activity window, usage cap
// and minimum amount, and returns the discount for the given subtotal
// (in cents). It never mutates the coupon: previewing totals must not
// consume usage.
func Evaluate(c *Coupon, subtotal int64, now time.Time) (int64, error) {
	if c == nil || !c.IsActive {
		code := ""
		if c != nil {
			code = c.Code
		}
		return 0, &ValidationError{Code: code, Reason: ReasonNotFound}
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return 0, &ValidationError{Code: c.Code, Reason: ReasonExpired}
	}
	if now.Before(c.StartsAt) {
		return 0, &ValidationError{Code: c.Code, Reason: ReasonNotYetActive}
	}
	if !c.HasUsageLeft() {
		return 0, &ValidationError{Code: c.Code, Reason: ReasonUsageExceeded}
	}
	if subtotal < c.MinimumAmount {
		return 0, &ValidationError{Code: c.Code, Reason: ReasonMinimumNotMet}
	}

	var discount int64
	switch c.Type {
	case DiscountTypePercentage:
		// Round half-up to whole cents
		discount = decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromFloat(c.Value)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case DiscountTypeFixedAmount:
		discount = decimal.NewFromFloat(c.Value).Round(0).IntPart()
	default:
		return 0, fmt.Errorf("unknown discount type: %s", c.Type)
	}

	// A discount can never make the order negative
	if discount > subtotal {
		discount = subtotal
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// CommitUsage increments the coupon's used count as a single conditional
// update so that concurrent checkouts cannot push it past the usage
// limit. Must run inside the same transaction that persists the order.
func (s *Service) CommitUsage(tx *gorm.DB, couponID uint) error {
	result := tx.Model(&Coupon{}).
		Where("id = ? AND (usage_limit IS NULL OR used_count < usage_limit)", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to commit coupon usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &ValidationError{Reason: ReasonUsageExceeded}
	}
	return nil
}
