// internal/domain/order/entity.go
package order

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// OrderStatus represents the fulfillment status of an order
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusConfirmed  OrderStatus = "confirmed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus represents the payment status of an order. It moves
// independently of OrderStatus.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// TransactionStatus mirrors the gateway lifecycle of a single charge
// attempt.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusSucceeded TransactionStatus = "succeeded"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Order represents the order entity. The monetary fields are a snapshot
// taken at checkout time and never change afterwards, whatever happens
// to the catalog.
type Order struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	OrderNumber   string        `gorm:"uniqueIndex;not null;size:50" json:"order_number"`
	UserID        *uint         `gorm:"index" json:"user_id"` // Nullable for guest orders
	Email         string        `gorm:"size:255" json:"email"`
	Status        OrderStatus   `gorm:"not null;default:'pending'" json:"status"`
	PaymentStatus PaymentStatus `gorm:"not null;default:'pending'" json:"payment_status"`

	// Financial snapshot, in cents
	SubtotalAmount int64 `gorm:"not null" json:"subtotal_amount"`
	DiscountAmount int64 `gorm:"default:0" json:"discount_amount"`
	ShippingAmount int64 `gorm:"default:0" json:"shipping_amount"`
	TaxAmount      int64 `gorm:"default:0" json:"tax_amount"`
	TotalAmount    int64 `gorm:"not null" json:"total_amount"`

	// Addresses
	ShippingAddress Address `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`
	BillingAddress  Address `gorm:"embedded;embeddedPrefix:billing_" json:"billing_address"`

	Currency   string `gorm:"size:3;default:'USD'" json:"currency"`
	Notes      string `gorm:"type:text" json:"notes"`
	CouponCode string `gorm:"size:50" json:"coupon_code"`

	// Timestamps
	ProcessedAt *time.Time     `json:"processed_at"`
	DeliveredAt *time.Time     `json:"delivered_at"`
	CancelledAt *time.Time     `json:"cancelled_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Items         []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"items"`
	Payments      []PaymentTransaction `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"payments,omitempty"`
	StatusHistory []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"status_history,omitempty"`
}

// OrderItem is an immutable snapshot of a cart line at order time. It
// is created with the order and never updated, even if the underlying
// product is edited or deleted later.
type OrderItem struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderID          uint      `gorm:"not null;index" json:"order_id"`
	ProductID        uint      `gorm:"not null;index" json:"product_id"`
	ProductVariantID *uint     `gorm:"index" json:"product_variant_id"`
	SKU              string    `gorm:"not null;size:100" json:"sku"`
	Name             string    `gorm:"not null;size:255" json:"name"`
	Quantity         int       `gorm:"not null" json:"quantity"`
	Price            int64     `gorm:"not null" json:"price"`       // Price per unit in cents
	TotalPrice       int64     `gorm:"not null" json:"total_price"` // Quantity * Price
	CreatedAt        time.Time `json:"created_at"`
}

// PaymentTransaction records one attempted charge against an order.
// Created when the charge is attempted; only gateway outcomes (sync
// result or callback) move its status afterwards.
type PaymentTransaction struct {
	ID             uint              `gorm:"primaryKey" json:"id"`
	OrderID        uint              `gorm:"not null;index" json:"order_id"`
	PaymentMethod  string            `gorm:"not null;size:50" json:"payment_method"`
	GatewayRef     string            `gorm:"size:255;index" json:"gateway_ref"` // External payment ID
	IdempotencyKey string            `gorm:"uniqueIndex;size:64" json:"idempotency_key"`
	Amount         int64             `gorm:"not null" json:"amount"` // In cents
	Currency       string            `gorm:"size:3;default:'USD'" json:"currency"`
	Status         TransactionStatus `gorm:"not null;default:'pending'" json:"status"`
	FailureReason  string            `gorm:"type:text" json:"failure_reason"`
	ProcessedAt    *time.Time        `json:"processed_at"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// OrderStatusHistory tracks order status changes
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"id"`
	OrderID   uint        `gorm:"not null;index" json:"order_id"`
	Status    OrderStatus `gorm:"not null" json:"status"`
	Comment   string      `gorm:"type:text" json:"comment"`
	CreatedBy uint        `gorm:"index" json:"created_by"` // User ID who made the change
	CreatedAt time.Time   `json:"created_at"`
}

// StockReleaseJob queues a compensating stock release that could not be
// applied immediately. A background worker retries pending jobs until
// they succeed or exhaust their attempts; they are never silently
// dropped.
type StockReleaseJob struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	OrderID   uint      `gorm:"not null;uniqueIndex" json:"order_id"`
	Reason    string    `gorm:"size:255" json:"reason"`
	Status    string    `gorm:"not null;default:'pending';index" json:"status"` // pending, done, exhausted
	Attempts  int       `gorm:"default:0" json:"attempts"`
	LastError string    `gorm:"type:text" json:"last_error"`
	NextRunAt time.Time `gorm:"index" json:"next_run_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Address represents shipping/billing address (embedded in Order)
type Address struct {
	FirstName    string `gorm:"size:100" json:"first_name"`
	LastName     string `gorm:"size:100" json:"last_name"`
	AddressLine1 string `gorm:"size:255" json:"address_line1"`
	AddressLine2 string `gorm:"size:255" json:"address_line2"`
	City         string `gorm:"size:100" json:"city"`
	State        string `gorm:"size:100" json:"state"`
	PostalCode   string `gorm:"size:20" json:"postal_code"`
	Country      string `gorm:"size:2" json:"country"`
	Phone        string `gorm:"size:20" json:"phone"`
}

// TableName overrides
func (Order) TableName() string              { return "orders" }
func (OrderItem) TableName() string          { return "order_items" }
func (PaymentTransaction) TableName() string { return "payment_transactions" }
func (OrderStatusHistory) TableName() string { return "order_status_history" }
func (StockReleaseJob) TableName() string    { return "stock_release_jobs" }

// Business methods

// FormatOrderNumber renders the human-readable order number for an
// order id: ORD-YYYYMMDD-NNNNN.
func FormatOrderNumber(orderID uint, at time.Time) string {
	return fmt.Sprintf("ORD-%s-%05d", at.Format("20060102"), orderID)
}

// CanTransitionTo reports whether the fulfillment state machine allows
// moving from one status to another. Cancellation is reachable from any
// non-terminal state; delivered and cancelled are terminal.
func CanTransitionTo(from, to OrderStatus) bool {
	validTransitions := map[OrderStatus][]OrderStatus{
		OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
		OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
		OrderStatusProcessing: {OrderStatusDelivered, OrderStatusCancelled},
	}

	for _, status := range validTransitions[from] {
		if status == to {
			return true
		}
	}
	return false
}

// CanBeCancelled checks if the order can still be cancelled
func (o *Order) CanBeCancelled() bool {
	return CanTransitionTo(o.Status, OrderStatusCancelled)
}

// CanBeRefunded checks if the order's payment can be refunded
func (o *Order) CanBeRefunded() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// GetFormattedTotal returns the total amount in major units
func (o *Order) GetFormattedTotal() float64 {
	return float64(o.TotalAmount) / 100
}

// AddStatusHistory appends a status change record
func (o *Order) AddStatusHistory(status OrderStatus, comment string, createdBy uint) {
	o.StatusHistory = append(o.StatusHistory, OrderStatusHistory{
		OrderID:   o.ID,
		Status:    status,
		Comment:   comment,
		CreatedBy: createdBy,
		CreatedAt: time.Now().UTC(),
	})
}
