// internal/domain/payment/service.go
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/inventory"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/order"
	"gorm.io/gorm"
)

var (
	// ErrInvalidSignature is returned for callbacks that fail HMAC
	// verification.
	ErrInvalidSignature = errors.New("invalid callback signature")
	// ErrUnknownTransaction is returned when the callback references a
	// charge this service never created.
	ErrUnknownTransaction = errors.New("unknown payment transaction")
)

// CallbackPayload is the gateway's asynchronous payment notification.
type CallbackPayload struct {
	GatewayRef     string `json:"gateway_ref" binding:"required"`
	IdempotencyKey string `json:"idempotency_key" binding:"required"`
	Status         string `json:"status" binding:"required"` // succeeded or failed
	FailureReason  string `json:"failure_reason"`
}

// Service finalizes asynchronous payments reported by the gateway
// callback. Processing is idempotent: redelivered callbacks find the
// transaction already settled and change nothing.
type Service struct {
	db               *gorm.DB
	config           *config.Config
	logger           *logrus.Logger
	inventoryService *inventory.Service
}

// NewService creates a new payment service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	return &Service{
		db:               db,
		config:           cfg,
		logger:           logger,
		inventoryService: inventory.NewService(db),
	}
}

// VerifySignature checks the HMAC-SHA256 signature the gateway attaches
// to callback deliveries.
func (s *Service) VerifySignature(body []byte, signature string) error {
	mac := hmac.New(sha256.New, []byte(s.config.Payment.KeySecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// ProcessCallback settles a pending payment transaction from a gateway
// notification. The settle step is a conditional update on the pending
// status, so a redelivered or raced callback affects zero rows and is
// treated as already processed.
func (s *Service) ProcessCallback(ctx context.Context, payload *CallbackPayload) error {
	var payment order.PaymentTransaction
	err := s.db.WithContext(ctx).
		Where("idempotency_key = ?", payload.IdempotencyKey).
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUnknownTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to load payment transaction: %w", err)
	}

	var newStatus order.TransactionStatus
	switch payload.Status {
	case "succeeded":
		newStatus = order.TransactionStatusSucceeded
	case "failed":
		newStatus = order.TransactionStatusFailed
	default:
		return fmt.Errorf("unknown callback status %q", payload.Status)
	}

	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&order.PaymentTransaction{}).
		Where("id = ? AND status = ?", payment.ID, order.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         newStatus,
			"gateway_ref":    payload.GatewayRef,
			"failure_reason": payload.FailureReason,
			"processed_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to settle payment transaction: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		s.logger.WithFields(logrus.Fields{
			"payment_id":  payment.ID,
			"gateway_ref": payload.GatewayRef,
		}).Info("Callback for already settled payment ignored")
		return nil
	}

	if newStatus == order.TransactionStatusSucceeded {
		return s.confirmOrder(ctx, payment.OrderID, now)
	}
	return s.failOrder(ctx, payment.OrderID, payload.FailureReason, now)
}

// confirmOrder mirrors a captured payment onto the order. The update is
// conditional on the order still being pending: a late callback for an
// order an admin already cancelled must not revive it.
func (s *Service) confirmOrder(ctx context.Context, orderID uint, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&order.Order{}).
			Where("id = ? AND status = ?", orderID, order.OrderStatusPending).
			Updates(map[string]interface{}{
				"status":         order.OrderStatusConfirmed,
				"payment_status": order.PaymentStatusPaid,
				"processed_at":   now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to confirm order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			// Money was captured for an order that is no longer pending.
			// Leave the order alone and flag it for manual review.
			s.logger.WithField("order_id", orderID).
				Warn("Captured payment for an order that is no longer pending")
			return nil
		}
		history := order.OrderStatusHistory{
			OrderID: orderID,
			Status:  order.OrderStatusConfirmed,
			Comment: "Payment captured via gateway callback",
		}
		return tx.Create(&history).Error
	})
}

// failOrder cancels the order and releases its reservation when the
// async payment ultimately fails. Cancellation is conditional on the
// order still being pending; if something else already settled it, that
// path owns the stock and releasing again would inflate inventory.
func (s *Service) failOrder(ctx context.Context, orderID uint, reason string, now time.Time) error {
	var cancelled bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&order.Order{}).
			Where("id = ? AND status = ?", orderID, order.OrderStatusPending).
			Updates(map[string]interface{}{
				"status":         order.OrderStatusCancelled,
				"payment_status": order.PaymentStatusFailed,
				"cancelled_at":   now,
			})
		if result.Error != nil {
			return fmt.Errorf("failed to cancel order: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil
		}
		cancelled = true
		history := order.OrderStatusHistory{
			OrderID: orderID,
			Status:  order.OrderStatusCancelled,
			Comment: "Payment failed: " + reason,
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return err
	}
	if !cancelled {
		s.logger.WithField("order_id", orderID).
			Info("Failure callback for an order that is no longer pending ignored")
		return nil
	}

	var items []order.OrderItem
	if err := s.db.WithContext(ctx).Where("order_id = ?", orderID).Find(&items).Error; err != nil {
		return fmt.Errorf("failed to load order items: %w", err)
	}

	release := make([]inventory.ReleaseItem, 0, len(items))
	for _, item := range items {
		release = append(release, inventory.ReleaseItem{
			ProductID:        item.ProductID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
		})
	}
	if err := s.inventoryService.Release(release, orderID, "async payment failed"); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).
			Error("Stock release failed after payment callback, queueing for retry")
		job := order.StockReleaseJob{
			OrderID:   orderID,
			Reason:    "async payment failed",
			Status:    "pending",
			Attempts:  1,
			LastError: err.Error(),
			NextRunAt: now.Add(s.config.Payment.ReleaseRetryEvery),
		}
		if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
			s.logger.WithError(err).WithField("order_id", orderID).
				Error("Failed to queue stock release job")
		}
	}
	return nil
}
