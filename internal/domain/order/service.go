// internal/domain/order/service.go
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/cart"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/checkout"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/coupon"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/inventory"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/pricing"
	"gorm.io/gorm"
)

// ErrOrderNotFound is returned when an order does not exist or does not
// belong to the requesting user.
var ErrOrderNotFound = errors.New("order not found")

// InvalidTransitionError reports a status change the order state machine
// does not allow.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from %s to %s", e.From, e.To)
}

// CheckoutRequest carries the customer's side of a checkout.
type CheckoutRequest struct {
	Email                string   `json:"email" binding:"required,email"`
	ShippingAddress      Address  `json:"shipping_address" binding:"required"`
	BillingAddress       *Address `json:"billing_address"`
	UseShippingAsBilling bool     `json:"use_shipping_as_billing"`
	PaymentMethod        string   `json:"payment_method" binding:"required"`
	PaymentToken         string   `json:"payment_token"`
	Notes                string   `json:"notes"`
}

// Service orchestrates the checkout transaction and the order lifecycle
// after it. The durable steps (resolve, price, reserve, persist, coupon
// commit) run inside one database transaction; the gateway charge runs
// after commit with compensation on failure.
type Service struct {
	db               *gorm.DB
	redisClient      *redis.Client
	config           *config.Config
	logger           *logrus.Logger
	cartService      *cart.Service
	checkoutService  *checkout.Service
	couponService    *coupon.Service
	inventoryService *inventory.Service
	resolver         *pricing.Resolver
	gateway          PaymentGateway
}

// NewService creates a new order service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger, gateway PaymentGateway) *Service {
	return &Service{
		db:               db,
		redisClient:      redisClient,
		config:           cfg,
		logger:           logger,
		cartService:      cart.NewService(db, redisClient, cfg),
		checkoutService:  checkout.NewService(db, redisClient, cfg),
		couponService:    coupon.NewService(db),
		inventoryService: inventory.NewService(db),
		resolver:         pricing.NewResolver(db),
		gateway:          gateway,
	}
}

// Checkout converts the cart into an order. Pricing, reservation, order
// persistence and coupon usage commit atomically; if any step fails the
// transaction rolls back and nothing is consumed. The gateway charge
// happens after commit, with stock release and cancellation as the
// compensating path when it declines or times out.
func (s *Service) Checkout(ctx context.Context, ref cart.Ref, req *CheckoutRequest) (*Order, error) {
	now := time.Now().UTC()

	var appliedCoupon *coupon.Coupon
	if code, err := s.checkoutService.AttachedCouponCode(ctx, ref); err != nil {
		return nil, err
	} else if code != "" {
		appliedCoupon, err = s.couponService.FindByCode(ctx, code)
		if err != nil {
			return nil, err
		}
	}

	billing := req.ShippingAddress
	if !req.UseShippingAsBilling && req.BillingAddress != nil {
		billing = *req.BillingAddress
	}

	var order Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lines, err := s.cartService.GetLines(ctx, ref)
		if err != nil {
			return fmt.Errorf("failed to retrieve cart: %w", err)
		}
		if len(lines) == 0 {
			return checkout.ErrEmptyCart
		}

		resolved, err := s.resolver.ResolveLines(tx, lines)
		if err != nil {
			return err
		}

		totals, err := checkout.ComputeTotals(resolved, appliedCoupon, now, s.config.Checkout)
		if err != nil {
			return err
		}

		order = Order{
			UserID:          ref.UserID,
			Email:           req.Email,
			Status:          OrderStatusPending,
			PaymentStatus:   PaymentStatusPending,
			SubtotalAmount:  totals.Subtotal,
			DiscountAmount:  totals.DiscountAmount,
			ShippingAmount:  totals.ShippingCost,
			TaxAmount:       totals.TaxAmount,
			TotalAmount:     totals.Total,
			Currency:        totals.Currency,
			CouponCode:      totals.CouponCode,
			ShippingAddress: req.ShippingAddress,
			BillingAddress:  billing,
			Notes:           req.Notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		// Order number needs the generated ID
		order.OrderNumber = FormatOrderNumber(order.ID, now)
		if err := tx.Model(&order).UpdateColumn("order_number", order.OrderNumber).Error; err != nil {
			return fmt.Errorf("failed to set order number: %w", err)
		}

		for _, line := range totals.Lines {
			item := OrderItem{
				OrderID:          order.ID,
				ProductID:        line.ProductID,
				ProductVariantID: line.VariantID,
				SKU:              line.SKU,
				Name:             line.DisplayName,
				Quantity:         line.Quantity,
				Price:            line.UnitPrice,
				TotalPrice:       line.LineTotal(),
			}
			if err := tx.Create(&item).Error; err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			order.Items = append(order.Items, item)
		}

		if err := s.inventoryService.Reserve(tx, resolved, order.ID); err != nil {
			return err
		}

		if appliedCoupon != nil {
			if err := s.couponService.CommitUsage(tx, appliedCoupon.ID); err != nil {
				return err
			}
		}

		history := OrderStatusHistory{
			OrderID: order.ID,
			Status:  OrderStatusPending,
			Comment: "Order created",
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":     order.ID,
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount,
	}).Info("Order created, charging payment gateway")

	return s.chargeOrder(ctx, ref, &order, req)
}

// chargeOrder runs the post-commit payment step and settles the order
// one way or the other.
func (s *Service) chargeOrder(ctx context.Context, ref cart.Ref, order *Order, req *CheckoutRequest) (*Order, error) {
	payment := PaymentTransaction{
		OrderID:        order.ID,
		PaymentMethod:  req.PaymentMethod,
		IdempotencyKey: uuid.New().String(),
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Status:         TransactionStatusPending,
	}
	if err := s.db.WithContext(ctx).Create(&payment).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment transaction: %w", err)
	}

	chargeCtx, cancel := context.WithTimeout(ctx, s.config.Payment.ChargeTimeout)
	defer cancel()

	result, chargeErr := s.gateway.Charge(chargeCtx, ChargeRequest{
		OrderNumber:    order.OrderNumber,
		Amount:         order.TotalAmount,
		Currency:       order.Currency,
		Method:         req.PaymentMethod,
		Token:          req.PaymentToken,
		Email:          req.Email,
		IdempotencyKey: payment.IdempotencyKey,
	})

	switch {
	case chargeErr == nil && result.Status == ChargeStatusSucceeded:
		if err := s.markPaid(ctx, order, &payment, result.GatewayRef); err != nil {
			return nil, err
		}
		s.clearCart(ctx, ref, order.ID)
		return order, nil

	case chargeErr == nil && result.Status == ChargeStatusPending:
		// Async method; the gateway callback will finalize the payment.
		// The reservation stays held and the order stays pending.
		if err := s.db.WithContext(ctx).Model(&payment).
			UpdateColumn("gateway_ref", result.GatewayRef).Error; err != nil {
			return nil, fmt.Errorf("failed to record gateway reference: %w", err)
		}
		s.clearCart(ctx, ref, order.ID)
		return order, nil

	case errors.Is(chargeErr, ErrPaymentDeclined):
		s.markFailed(ctx, order, &payment, chargeErr.Error())
		s.compensate(ctx, order, "payment declined")
		s.clearCart(ctx, ref, order.ID)
		return order, chargeErr

	default:
		// Timeout or transport failure: the outcome is unknown, so the
		// order fails and stock is released, but the cart is kept so the
		// customer can retry.
		if errors.Is(chargeErr, context.DeadlineExceeded) {
			chargeErr = ErrGatewayTimeout
		}
		s.markFailed(ctx, order, &payment, chargeErr.Error())
		s.compensate(ctx, order, "payment gateway failure")
		return order, chargeErr
	}
}

// markPaid records a successful charge and confirms the order.
func (s *Service) markPaid(ctx context.Context, order *Order, payment *PaymentTransaction, gatewayRef string) error {
	now := time.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(payment).Updates(map[string]interface{}{
			"status":       TransactionStatusSucceeded,
			"gateway_ref":  gatewayRef,
			"processed_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to update payment transaction: %w", err)
		}

		order.Status = OrderStatusConfirmed
		order.PaymentStatus = PaymentStatusPaid
		order.ProcessedAt = &now
		if err := tx.Model(order).Updates(map[string]interface{}{
			"status":         OrderStatusConfirmed,
			"payment_status": PaymentStatusPaid,
			"processed_at":   now,
		}).Error; err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}

		history := OrderStatusHistory{
			OrderID: order.ID,
			Status:  OrderStatusConfirmed,
			Comment: "Payment captured",
		}
		return tx.Create(&history).Error
	})
}

// markFailed records a failed charge and cancels the order. Errors here
// are logged rather than returned: the charge outcome is already decided
// and the caller still has compensation to run.
func (s *Service) markFailed(ctx context.Context, order *Order, payment *PaymentTransaction, reason string) {
	now := time.Now().UTC()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(payment).Updates(map[string]interface{}{
			"status":         TransactionStatusFailed,
			"failure_reason": reason,
			"processed_at":   now,
		}).Error; err != nil {
			return err
		}

		order.Status = OrderStatusCancelled
		order.PaymentStatus = PaymentStatusFailed
		order.CancelledAt = &now
		if err := tx.Model(order).Updates(map[string]interface{}{
			"status":         OrderStatusCancelled,
			"payment_status": PaymentStatusFailed,
			"cancelled_at":   now,
		}).Error; err != nil {
			return err
		}

		history := OrderStatusHistory{
			OrderID: order.ID,
			Status:  OrderStatusCancelled,
			Comment: "Payment failed: " + reason,
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).
			Error("Failed to record payment failure")
	}
}

// compensate releases the stock reserved for a failed order. If the
// release itself fails it is queued as a StockReleaseJob so the worker
// retries it; reserved stock is never leaked silently.
func (s *Service) compensate(ctx context.Context, order *Order, reason string) {
	items := releaseItems(order.Items)
	if err := s.inventoryService.Release(items, order.ID, reason); err != nil {
		s.logger.WithError(err).WithField("order_id", order.ID).
			Error("Stock release failed, queueing for retry")
		s.enqueueRelease(ctx, order.ID, reason, err)
	}
}

// enqueueRelease records a pending stock release for the compensation
// worker to pick up.
func (s *Service) enqueueRelease(ctx context.Context, orderID uint, reason string, cause error) {
	job := StockReleaseJob{
		OrderID:   orderID,
		Reason:    reason,
		Status:    releaseJobPending,
		Attempts:  1,
		LastError: cause.Error(),
		NextRunAt: time.Now().UTC().Add(s.config.Payment.ReleaseRetryEvery),
	}
	if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).
			Error("Failed to queue stock release job")
	}
}

// clearCart empties the customer's cart once the checkout outcome is
// settled. A failure only logs: the order already exists.
func (s *Service) clearCart(ctx context.Context, ref cart.Ref, orderID uint) {
	if err := s.cartService.ClearCart(ctx, ref); err != nil {
		s.logger.WithError(err).WithField("order_id", orderID).
			Warn("Failed to clear cart after checkout")
	}
}

func releaseItems(items []OrderItem) []inventory.ReleaseItem {
	release := make([]inventory.ReleaseItem, 0, len(items))
	for _, item := range items {
		release = append(release, inventory.ReleaseItem{
			ProductID:        item.ProductID,
			ProductVariantID: item.ProductVariantID,
			Quantity:         item.Quantity,
		})
	}
	return release
}

// GetOrders retrieves orders for a user with pagination
func (s *Service) GetOrders(ctx context.Context, userID uint, limit, offset int) ([]Order, int64, error) {
	var orders []Order
	var total int64

	query := s.db.WithContext(ctx).Model(&Order{}).Where("user_id = ?", userID)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	err := query.Preload("Items").
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&orders).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to retrieve orders: %w", err)
	}

	return orders, total, nil
}

// GetOrder retrieves a single order scoped to a user.
func (s *Service) GetOrder(ctx context.Context, userID, orderID uint) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("StatusHistory").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// GetOrderByID retrieves any order without user scoping (admin use).
func (s *Service) GetOrderByID(ctx context.Context, orderID uint) (*Order, error) {
	var order Order
	err := s.db.WithContext(ctx).
		Preload("Items").
		Preload("Payments").
		Preload("StatusHistory").
		First(&order, orderID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve order: %w", err)
	}
	return &order, nil
}

// UpdateOrderStatus moves an order through the fulfillment state
// machine. Transitions outside the machine are rejected.
func (s *Service) UpdateOrderStatus(ctx context.Context, orderID uint, status OrderStatus, comment string, adminID uint) (*Order, error) {
	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !CanTransitionTo(order.Status, status) {
		return nil, &InvalidTransitionError{From: order.Status, To: status}
	}
	if status == OrderStatusCancelled {
		return s.Cancel(ctx, orderID, comment, adminID)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{"status": status}
	switch status {
	case OrderStatusProcessing:
		updates["processed_at"] = now
	case OrderStatusDelivered:
		updates["delivered_at"] = now
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		history := OrderStatusHistory{
			OrderID:   order.ID,
			Status:    status,
			Comment:   comment,
			CreatedBy: adminID,
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	order.Status = status
	return order, nil
}

// Cancel cancels an order that has not shipped and releases its
// reserved stock.
func (s *Service) Cancel(ctx context.Context, orderID uint, reason string, byUser uint) (*Order, error) {
	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeCancelled() {
		return nil, &InvalidTransitionError{From: order.Status, To: OrderStatusCancelled}
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(order).Updates(map[string]interface{}{
			"status":       OrderStatusCancelled,
			"cancelled_at": now,
		}).Error; err != nil {
			return fmt.Errorf("failed to cancel order: %w", err)
		}
		history := OrderStatusHistory{
			OrderID:   order.ID,
			Status:    OrderStatusCancelled,
			Comment:   reason,
			CreatedBy: byUser,
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, err
	}

	order.Status = OrderStatusCancelled
	order.CancelledAt = &now
	s.compensate(ctx, order, "order cancelled")

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"reason":   reason,
	}).Info("Order cancelled")

	return order, nil
}

// Refund refunds a paid order through the gateway and marks the payment
// refunded. Stock handling is separate: a refund does not restock by
// itself, cancellation does.
func (s *Service) Refund(ctx context.Context, orderID uint, adminID uint) (*Order, error) {
	order, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.CanBeRefunded() {
		return nil, fmt.Errorf("order %s is not refundable: payment status is %s", order.OrderNumber, order.PaymentStatus)
	}

	var payment *PaymentTransaction
	for i := range order.Payments {
		if order.Payments[i].Status == TransactionStatusSucceeded {
			payment = &order.Payments[i]
			break
		}
	}
	if payment == nil {
		return nil, fmt.Errorf("order %s has no captured payment to refund", order.OrderNumber)
	}

	refundCtx, cancel := context.WithTimeout(ctx, s.config.Payment.ChargeTimeout)
	defer cancel()
	if err := s.gateway.Refund(refundCtx, payment.GatewayRef, payment.Amount); err != nil {
		return nil, fmt.Errorf("gateway refund failed: %w", err)
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(payment).Updates(map[string]interface{}{
			"status":       TransactionStatusRefunded,
			"processed_at": now,
		}).Error; err != nil {
			return err
		}
		if err := tx.Model(order).
			UpdateColumn("payment_status", PaymentStatusRefunded).Error; err != nil {
			return err
		}
		history := OrderStatusHistory{
			OrderID:   order.ID,
			Status:    order.Status,
			Comment:   "Payment refunded",
			CreatedBy: adminID,
		}
		return tx.Create(&history).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record refund: %w", err)
	}

	order.PaymentStatus = PaymentStatusRefunded
	return order, nil
}
