package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/inventory"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/order"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/product"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func signatureService(secret string) *Service {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := &config.Config{}
	cfg.Payment.KeySecret = secret
	return NewService(nil, cfg, logger)
}

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifySignature_Valid(t *testing.T) {
	svc := signatureService("topsecret")
	body := []byte(`{"gateway_ref":"ch_abc","status":"succeeded"}`)

	err := svc.VerifySignature(body, sign("topsecret", body))

	assert.NoError(t, err)
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	svc := signatureService("topsecret")
	body := []byte(`{"gateway_ref":"ch_abc","status":"succeeded"}`)

	err := svc.VerifySignature(body, sign("othersecret", body))

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignature_TamperedBody(t *testing.T) {
	svc := signatureService("topsecret")
	body := []byte(`{"gateway_ref":"ch_abc","status":"succeeded"}`)
	signature := sign("topsecret", body)

	err := svc.VerifySignature([]byte(`{"gateway_ref":"ch_abc","status":"failed"}`), signature)

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignature_EmptySignature(t *testing.T) {
	svc := signatureService("topsecret")

	err := svc.VerifySignature([]byte(`{}`), "")

	assert.ErrorIs(t, err, ErrInvalidSignature)
}

func callbackTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&product.Product{},
		&order.Order{},
		&order.OrderItem{},
		&order.PaymentTransaction{},
		&order.OrderStatusHistory{},
		&order.StockReleaseJob{},
		&inventory.StockMovement{},
	))
	return db
}

func callbackService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	cfg := &config.Config{}
	cfg.Payment.KeySecret = "topsecret"
	cfg.Payment.ReleaseRetryEvery = time.Minute
	return NewService(db, cfg, logger)
}

// seedOrderWithPendingPayment creates an order in the given status with
// one item and one pending payment transaction.
func seedOrderWithPendingPayment(t *testing.T, db *gorm.DB, status order.OrderStatus) order.PaymentTransaction {
	t.Helper()

	ord := order.Order{
		OrderNumber:   "ORD-20260828-00001",
		Email:         "nurse@example.com",
		Status:        status,
		PaymentStatus: order.PaymentStatusPending,
		TotalAmount:   5000,
		Currency:      "USD",
	}
	require.NoError(t, db.Create(&ord).Error)
	require.NoError(t, db.Create(&order.OrderItem{
		OrderID:    ord.ID,
		ProductID:  1,
		SKU:        "SCRUB-SET-CLASSIC",
		Name:       "Classic Scrub Set",
		Quantity:   2,
		Price:      2500,
		TotalPrice: 5000,
	}).Error)

	payment := order.PaymentTransaction{
		OrderID:        ord.ID,
		PaymentMethod:  "card",
		IdempotencyKey: "idem-callback-1",
		Amount:         5000,
		Currency:       "USD",
		Status:         order.TransactionStatusPending,
	}
	require.NoError(t, db.Create(&payment).Error)
	return payment
}

func TestProcessCallback_ConfirmsPendingOrder(t *testing.T) {
	db := callbackTestDB(t)
	svc := callbackService(t, db)
	payment := seedOrderWithPendingPayment(t, db, order.OrderStatusPending)

	err := svc.ProcessCallback(context.Background(), &CallbackPayload{
		GatewayRef:     "ch_async",
		IdempotencyKey: payment.IdempotencyKey,
		Status:         "succeeded",
	})
	require.NoError(t, err)

	var ord order.Order
	require.NoError(t, db.First(&ord, payment.OrderID).Error)
	assert.Equal(t, order.OrderStatusConfirmed, ord.Status)
	assert.Equal(t, order.PaymentStatusPaid, ord.PaymentStatus)

	var settled order.PaymentTransaction
	require.NoError(t, db.First(&settled, payment.ID).Error)
	assert.Equal(t, order.TransactionStatusSucceeded, settled.Status)
	assert.Equal(t, "ch_async", settled.GatewayRef)

	// Redelivery is a no-op
	require.NoError(t, svc.ProcessCallback(context.Background(), &CallbackPayload{
		GatewayRef:     "ch_async",
		IdempotencyKey: payment.IdempotencyKey,
		Status:         "failed",
	}))
	require.NoError(t, db.First(&ord, payment.OrderID).Error)
	assert.Equal(t, order.OrderStatusConfirmed, ord.Status)
}

// A late success callback must not revive an order that was already
// cancelled; cancelled is terminal.
func TestProcessCallback_LateSuccessKeepsOrderCancelled(t *testing.T) {
	db := callbackTestDB(t)
	svc := callbackService(t, db)
	payment := seedOrderWithPendingPayment(t, db, order.OrderStatusCancelled)

	err := svc.ProcessCallback(context.Background(), &CallbackPayload{
		GatewayRef:     "ch_late",
		IdempotencyKey: payment.IdempotencyKey,
		Status:         "succeeded",
	})
	require.NoError(t, err)

	var ord order.Order
	require.NoError(t, db.First(&ord, payment.OrderID).Error)
	assert.Equal(t, order.OrderStatusCancelled, ord.Status)

	// The transaction itself is settled so redeliveries stay no-ops
	var settled order.PaymentTransaction
	require.NoError(t, db.First(&settled, payment.ID).Error)
	assert.Equal(t, order.TransactionStatusSucceeded, settled.Status)
}

// A late failure callback for an already cancelled order must not
// release stock a second time.
func TestProcessCallback_LateFailureDoesNotDoubleRelease(t *testing.T) {
	db := callbackTestDB(t)
	svc := callbackService(t, db)
	// Stock was already put back when the order was cancelled
	require.NoError(t, db.Create(&product.Product{
		SKU:        "SCRUB-SET-CLASSIC",
		Name:       "Classic Scrub Set",
		Slug:       "classic-scrub-set",
		Price:      2500,
		CategoryID: 1,
		IsActive:   true,
		Quantity:   10,
	}).Error)
	payment := seedOrderWithPendingPayment(t, db, order.OrderStatusCancelled)

	err := svc.ProcessCallback(context.Background(), &CallbackPayload{
		GatewayRef:     "ch_late",
		IdempotencyKey: payment.IdempotencyKey,
		Status:         "failed",
		FailureReason:  "card expired",
	})
	require.NoError(t, err)

	var prod product.Product
	require.NoError(t, db.First(&prod, 1).Error)
	assert.Equal(t, 10, prod.Quantity)

	var movements int64
	require.NoError(t, db.Model(&inventory.StockMovement{}).Count(&movements).Error)
	assert.Equal(t, int64(0), movements)
}

func TestProcessCallback_FailureCancelsAndReleases(t *testing.T) {
	db := callbackTestDB(t)
	svc := callbackService(t, db)
	require.NoError(t, db.Create(&product.Product{
		SKU:        "SCRUB-SET-CLASSIC",
		Name:       "Classic Scrub Set",
		Slug:       "classic-scrub-set",
		Price:      2500,
		CategoryID: 1,
		IsActive:   true,
		Quantity:   8, // 10 on the shelf, 2 reserved by this order
	}).Error)
	payment := seedOrderWithPendingPayment(t, db, order.OrderStatusPending)

	err := svc.ProcessCallback(context.Background(), &CallbackPayload{
		GatewayRef:     "ch_async",
		IdempotencyKey: payment.IdempotencyKey,
		Status:         "failed",
		FailureReason:  "card expired",
	})
	require.NoError(t, err)

	var ord order.Order
	require.NoError(t, db.First(&ord, payment.OrderID).Error)
	assert.Equal(t, order.OrderStatusCancelled, ord.Status)
	assert.Equal(t, order.PaymentStatusFailed, ord.PaymentStatus)

	var prod product.Product
	require.NoError(t, db.First(&prod, 1).Error)
	assert.Equal(t, 10, prod.Quantity)
}

func TestProcessCallback_UnknownTransaction(t *testing.T) {
	db := callbackTestDB(t)
	svc := callbackService(t, db)

	err := svc.ProcessCallback(context.Background(), &CallbackPayload{
		GatewayRef:     "ch_ghost",
		IdempotencyKey: "idem-nobody",
		Status:         "succeeded",
	})

	assert.ErrorIs(t, err, ErrUnknownTransaction)
}
