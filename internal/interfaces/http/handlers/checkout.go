// internal/interfaces/http/handlers/checkout.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/checkout"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/coupon"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/pricing"
	"gorm.io/gorm"
)

// CheckoutHandler handles checkout preview and coupon endpoints
type CheckoutHandler struct {
	checkoutService *checkout.Service
	config          *config.Config
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkout.NewService(db, redisClient, cfg),
		config:          cfg,
	}
}

// Preview handles GET /checkout/preview. Prices the cart without
// touching coupon usage or inventory.
func (h *CheckoutHandler) Preview(c *gin.Context) {
	ref := cartRef(c)

	totals, err := h.checkoutService.Preview(c.Request.Context(), ref)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Checkout preview computed successfully",
		"data":    totals,
	})
}

// ApplyCouponRequest represents apply coupon request
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// ApplyCoupon handles POST /checkout/coupon
func (h *CheckoutHandler) ApplyCoupon(c *gin.Context) {
	ref := cartRef(c)

	var req ApplyCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	totals, err := h.checkoutService.ApplyCoupon(c.Request.Context(), ref, req.Code)
	if err != nil {
		respondCheckoutError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon applied successfully",
		"data":    totals,
	})
}

// RemoveCoupon handles DELETE /checkout/coupon
func (h *CheckoutHandler) RemoveCoupon(c *gin.Context) {
	ref := cartRef(c)

	if err := h.checkoutService.RemoveCoupon(c.Request.Context(), ref); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to remove coupon",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Coupon removed successfully",
	})
}

// respondCheckoutError maps pricing and coupon failures onto HTTP
// statuses with machine-readable reason codes.
func respondCheckoutError(c *gin.Context, err error) {
	var couponErr *coupon.ValidationError
	if errors.As(err, &couponErr) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":  couponErr.Error(),
			"reason": couponErr.Reason,
		})
		return
	}

	var notFoundErr *pricing.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusConflict, gin.H{
			"error": notFoundErr.Error(),
		})
		return
	}

	if errors.Is(err, checkout.ErrEmptyCart) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Cart is empty",
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "Failed to compute checkout totals",
	})
}
