// internal/domain/checkout/service.go
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/cart"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/coupon"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/pricing"
	"gorm.io/gorm"
)

// ErrEmptyCart is returned when a checkout is attempted on a cart with
// no lines.
var ErrEmptyCart = errors.New("cart is empty")

const appliedCouponTTL = 24 * time.Hour

// Totals is the ephemeral, never-persisted result of pricing a cart.
// All amounts are in cents. Total = Subtotal - DiscountAmount +
// ShippingCost + TaxAmount, never negative.
type Totals struct {
	Currency       string                 `json:"currency"`
	Subtotal       int64                  `json:"subtotal"`
	DiscountAmount int64                  `json:"discount_amount"`
	ShippingCost   int64                  `json:"shipping_cost"`
	TaxAmount      int64                  `json:"tax_amount"`
	Total          int64                  `json:"total"`
	CouponCode     string                 `json:"coupon_code,omitempty"`
	Lines          []pricing.ResolvedLine `json:"lines"`
}

// ComputeTotals prices a set of resolved cart lines under the given
// policy. Deterministic given its inputs and free of side effects; in
// particular it never touches coupon usage counts.
//
// Shipping is free above the configured threshold (evaluated on the
// pre-discount subtotal); tax applies to the post-discount taxable
// amount and never to shipping. Fractional cents round half-up.
func ComputeTotals(lines []pricing.ResolvedLine, c *coupon.Coupon, now time.Time, policy config.CheckoutConfig) (*Totals, error) {
	totals := &Totals{
		Currency: policy.Currency,
		Lines:    lines,
	}

	// Empty cart yields all-zero totals, not an error
	if len(lines) == 0 {
		totals.Lines = []pricing.ResolvedLine{}
		return totals, nil
	}

	for _, line := range lines {
		totals.Subtotal += line.LineTotal()
	}

	if c != nil {
		discount, err := coupon.Evaluate(c, totals.Subtotal, now)
		if err != nil {
			return nil, err
		}
		totals.DiscountAmount = discount
		totals.CouponCode = c.Code
	}

	if totals.Subtotal <= policy.FreeShippingThreshold {
		totals.ShippingCost = policy.ShippingFlatRate
	}

	taxable := totals.Subtotal - totals.DiscountAmount
	totals.TaxAmount = decimal.NewFromInt(taxable).
		Mul(decimal.NewFromFloat(policy.TaxRate)).
		Round(0).
		IntPart()

	totals.Total = totals.Subtotal - totals.DiscountAmount + totals.ShippingCost + totals.TaxAmount
	if totals.Total < 0 {
		totals.Total = 0
	}

	return totals, nil
}

// Service computes checkout previews and manages the coupon attached to
// a cart. Everything here is side-effect free with respect to durable
// state: committing a checkout belongs to the order service.
type Service struct {
	db            *gorm.DB
	redisClient   *redis.Client
	config        *config.Config
	cartService   *cart.Service
	couponService *coupon.Service
	resolver      *pricing.Resolver
}

// NewService creates a new checkout service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:            db,
		redisClient:   redisClient,
		config:        cfg,
		cartService:   cart.NewService(db, redisClient, cfg),
		couponService: coupon.NewService(db),
		resolver:      pricing.NewResolver(db),
	}
}

// Preview prices the cart as it stands, including any attached coupon.
// Calling it any number of times changes nothing: no usage increment,
// no inventory touch.
func (s *Service) Preview(ctx context.Context, ref cart.Ref) (*Totals, error) {
	lines, err := s.cartService.GetLines(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}

	resolved, err := s.resolver.ResolveLines(s.db.WithContext(ctx), lines)
	if err != nil {
		return nil, err
	}

	var appliedCoupon *coupon.Coupon
	if code, err := s.AttachedCouponCode(ctx, ref); err != nil {
		return nil, err
	} else if code != "" {
		appliedCoupon, err = s.couponService.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	return ComputeTotals(resolved, appliedCoupon, time.Now().UTC(), s.config.Checkout)
}

// ApplyCoupon validates a coupon against the current cart subtotal and
// attaches its code to the cart. The usage count is not consumed here;
// that happens when the order commits.
func (s *Service) ApplyCoupon(ctx context.Context, ref cart.Ref, code string) (*Totals, error) {
	lines, err := s.cartService.GetLines(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	resolved, err := s.resolver.ResolveLines(s.db.WithContext(ctx), lines)
	if err != nil {
		return nil, err
	}

	c, err := s.couponService.FindByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	totals, err := ComputeTotals(resolved, c, time.Now().UTC(), s.config.Checkout)
	if err != nil {
		return nil, err
	}

	if err := s.redisClient.Set(ctx, ref.CouponKey(), c.Code, appliedCouponTTL).Err(); err != nil {
		return nil, fmt.Errorf("failed to attach coupon: %w", err)
	}

	return totals, nil
}

// RemoveCoupon detaches any coupon from the cart.
func (s *Service) RemoveCoupon(ctx context.Context, ref cart.Ref) error {
	return s.redisClient.Del(ctx, ref.CouponKey()).Err()
}

// AttachedCouponCode returns the coupon code currently attached to the
// cart, or empty when none is.
func (s *Service) AttachedCouponCode(ctx context.Context, ref cart.Ref) (string, error) {
	code, err := s.redisClient.Get(ctx, ref.CouponKey()).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read attached coupon: %w", err)
	}
	return code, nil
}
