// internal/domain/order/gateway.go
package order

import (
	"context"
	"errors"
)

// Gateway outcome errors. ErrGatewayTimeout means the charge outcome is
// unknown; the caller compensates but must not clear the customer's cart.
var (
	ErrPaymentDeclined = errors.New("payment declined by gateway")
	ErrGatewayTimeout  = errors.New("payment gateway timed out")
)

// ChargeStatus is the synchronous outcome of a charge attempt.
type ChargeStatus string

const (
	ChargeStatusSucceeded ChargeStatus = "succeeded"
	ChargeStatusPending   ChargeStatus = "pending" // Async method, callback will finalize
)

// ChargeRequest carries everything the gateway needs for one charge.
// The idempotency key makes retried requests safe on the gateway side.
type ChargeRequest struct {
	OrderNumber    string
	Amount         int64 // In cents
	Currency       string
	Method         string
	Token          string
	Email          string
	IdempotencyKey string
}

// ChargeResult is the gateway's answer to a successful (non-declined)
// charge request.
type ChargeResult struct {
	GatewayRef string
	Status     ChargeStatus
}

// PaymentGateway is the order service's view of the external payment
// provider. Implementations return ErrPaymentDeclined on a definite
// decline and ErrGatewayTimeout when the outcome is unknown.
type PaymentGateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, gatewayRef string, amount int64) error
}
