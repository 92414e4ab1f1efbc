// internal/interfaces/http/handlers/payment.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/payment"
	"gorm.io/gorm"
)

// PaymentHandler handles payment gateway callbacks
type PaymentHandler struct {
	paymentService *payment.Service
	config         *config.Config
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *PaymentHandler {
	return &PaymentHandler{
		paymentService: payment.NewService(db, cfg, logger),
		config:         cfg,
	}
}

// Callback handles POST /webhooks/payment. The raw body is needed for
// signature verification before the payload is decoded.
func (h *PaymentHandler) Callback(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Failed to read request body",
		})
		return
	}

	signature := c.GetHeader("X-Gateway-Signature")
	if err := h.paymentService.VerifySignature(body, signature); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "Invalid signature",
		})
		return
	}

	var payload payment.CallbackPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid callback payload",
		})
		return
	}

	if err := h.paymentService.ProcessCallback(c.Request.Context(), &payload); err != nil {
		if errors.Is(err, payment.ErrUnknownTransaction) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Unknown payment transaction",
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to process payment callback",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Callback processed successfully",
	})
}
