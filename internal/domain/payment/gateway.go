// internal/domain/payment/gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/config"
	"github.com/karimmostafa-AI/dev-egy-sub000/internal/domain/order"
)

// HTTPGateway talks to the external payment provider over its REST API.
// It implements order.PaymentGateway.
type HTTPGateway struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPGateway creates a gateway client from configuration.
func NewHTTPGateway(cfg config.PaymentConfig, logger *logrus.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL:   cfg.BaseURL,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		httpClient: &http.Client{
			Timeout: cfg.ChargeTimeout,
		},
		logger: logger,
	}
}

type chargeRequest struct {
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	Method         string `json:"method"`
	Token          string `json:"token,omitempty"`
	Email          string `json:"email"`
	Receipt        string `json:"receipt"`
	IdempotencyKey string `json:"idempotency_key"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ErrorCode   string `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Charge submits a charge to the provider. A definite decline maps to
// order.ErrPaymentDeclined; a context deadline maps to
// order.ErrGatewayTimeout so the caller knows the outcome is unknown.
func (g *HTTPGateway) Charge(ctx context.Context, req order.ChargeRequest) (*order.ChargeResult, error) {
	payload := chargeRequest{
		Amount:         req.Amount,
		Currency:       req.Currency,
		Method:         req.Method,
		Token:          req.Token,
		Email:          req.Email,
		Receipt:        req.OrderNumber,
		IdempotencyKey: req.IdempotencyKey,
	}

	var resp chargeResponse
	status, err := g.post(ctx, "/charges", req.IdempotencyKey, payload, &resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("charge for %s: %w", req.OrderNumber, order.ErrGatewayTimeout)
		}
		return nil, fmt.Errorf("charge for %s: %w", req.OrderNumber, err)
	}

	switch {
	case status == http.StatusPaymentRequired || resp.Status == "declined" || resp.Status == "failed":
		g.logger.WithFields(logrus.Fields{
			"order_number": req.OrderNumber,
			"error_code":   resp.ErrorCode,
		}).Warn("Charge declined by gateway")
		return nil, fmt.Errorf("%s: %w", resp.Description, order.ErrPaymentDeclined)

	case status >= 200 && status < 300 && resp.Status == "succeeded":
		return &order.ChargeResult{GatewayRef: resp.ID, Status: order.ChargeStatusSucceeded}, nil

	case status >= 200 && status < 300 && resp.Status == "pending":
		return &order.ChargeResult{GatewayRef: resp.ID, Status: order.ChargeStatusPending}, nil

	default:
		return nil, fmt.Errorf("gateway returned unexpected response: http %d, status %q", status, resp.Status)
	}
}

// Refund refunds a captured charge in full or in part.
func (g *HTTPGateway) Refund(ctx context.Context, gatewayRef string, amount int64) error {
	payload := map[string]interface{}{"amount": amount}
	var resp chargeResponse
	status, err := g.post(ctx, "/charges/"+gatewayRef+"/refund", "", payload, &resp)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("refund %s: %w", gatewayRef, order.ErrGatewayTimeout)
		}
		return fmt.Errorf("refund %s: %w", gatewayRef, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("refund %s: gateway returned http %d (%s)", gatewayRef, status, resp.ErrorCode)
	}
	return nil
}

// post sends an authenticated JSON request and decodes the response body
// regardless of status code, since the gateway reports declines with a
// JSON body too.
func (g *HTTPGateway) post(ctx context.Context, path, idempotencyKey string, payload, out interface{}) (int, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(g.keyID, g.keySecret)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		return 0, fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	g.logger.WithFields(logrus.Fields{
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Gateway request completed")

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read gateway response: %w", err)
	}
	if len(data) > 0 && out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
