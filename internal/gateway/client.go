// Package gateway is a small client for a Razorpay-compatible payment REST
// API: order creation, payment lookup and refunds, plus the HMAC signature
// check used when the checkout widget reports a payment back.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gearguard/gearguard/internal/config"
)

// StatusCaptured is the payment status the gateway reports once funds are
// captured.
const StatusCaptured = "captured"

// ErrUnavailable wraps transport failures and timeouts.
var ErrUnavailable = errors.New("payment gateway unavailable")

// APIError is a non-2xx answer from the gateway.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("gateway: %d %s: %s", e.StatusCode, e.Code, e.Description)
	}
	return fmt.Sprintf("gateway: HTTP %d", e.StatusCode)
}

// OrderRequest creates an order for Amount minor units.
type OrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type Payment struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Amount  int64  `json:"amount"`
	Status  string `json:"status"`
}

type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}

// Client talks to the gateway with HTTP basic auth (key id : secret).
type Client struct {
	baseURL string
	keyID   string
	secret  string
	timeout time.Duration
	http    *http.Client
	log     *zap.Logger
}

// New builds a Client from the gateway fields of cfg.
func New(cfg config.Config, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.GatewayBaseURL, "/"),
		keyID:   cfg.GatewayKeyID,
		secret:  cfg.GatewaySecret,
		timeout: timeout,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("gateway"),
	}
}

// KeyID is the public key id handed to the checkout widget.
func (c *Client) KeyID() string { return c.keyID }

// VerifySignature checks a checkout signature against this client's secret.
func (c *Client) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, c.secret)
}

// CreateOrder registers a new order with the gateway.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	var out Order
	err := c.do(ctx, http.MethodPost, "/orders", req, &out)
	return out, err
}

// FetchPayment reads the gateway's view of a payment.
func (c *Client) FetchPayment(ctx context.Context, paymentID string) (Payment, error) {
	var out Payment
	err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(paymentID), nil, &out)
	return out, err
}

// Refund refunds amount minor units of a captured payment.
func (c *Client) Refund(ctx context.Context, paymentID string, amount int64, notes map[string]string) (Refund, error) {
	body := struct {
		Amount int64             `json:"amount"`
		Notes  map[string]string `json:"notes,omitempty"`
	}{amount, notes}
	var out Refund
	err := c.do(ctx, http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", body, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.keyID, c.secret)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("gateway call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	c.log.Debug("gateway call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var envelope struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Description = envelope.Error.Description
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("gateway: decode %s %s: %w", method, path, err)
	}
	return nil
}

// MinorUnits converts a major-unit amount (e.g. rupees) to minor units
// (paise), rounding half away from zero.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
