// Package gateway calls the payment gateway's function endpoint. Actions
// are invoked by name with a JSON payload; any transport or gateway failure
// is a payment-gateway error and never flips local subscription state.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"coachfit/platform/internal/apperr"
	"coachfit/platform/internal/config"
	"coachfit/platform/internal/metrics"

	"go.uber.org/zap"
)

// Gateway action names, matched by the function endpoint.
const (
	ActionCreateCustomer     = "create-customer"
	ActionCreateSubscription = "create-subscription"
	ActionGetPixQRCode       = "get-pix-qr-code"
	ActionCancelSubscription = "cancel-subscription"
)

// Client is the gateway contract consumed by the billing service.
type Client interface {
	CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*CreateCustomerResponse, error)
	CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error)
	GetPixQRCode(ctx context.Context, req PixQRCodeRequest) (*PixQRCodeResponse, error)
	CancelSubscription(ctx context.Context, req CancelSubscriptionRequest) error
}

type CreateCustomerRequest struct {
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

type CreateCustomerResponse struct {
	CustomerID string `json:"customerId"`
}

type CreateSubscriptionRequest struct {
	CustomerID     string `json:"customerId"`
	PlanID         string `json:"planId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

type CreateSubscriptionResponse struct {
	IntentID string `json:"intentId"`
	Status   string `json:"status"`
}

type PixQRCodeRequest struct {
	IntentID string `json:"intentId"`
}

type PixQRCodeResponse struct {
	QRCode    string `json:"qrCode"`
	CopyPaste string `json:"copyPaste"`
}

type CancelSubscriptionRequest struct {
	IntentID string `json:"intentId"`
}

// httpClient invokes the function endpoint over HTTP with bounded timeouts.
type httpClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *zap.Logger
}

// NewHTTPClient builds the production gateway client from config.
func NewHTTPClient(cfg config.GatewayConfig, log *zap.Logger) Client {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &httpClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("gateway"),
	}
}

func (c *httpClient) CreateCustomer(ctx context.Context, req CreateCustomerRequest) (*CreateCustomerResponse, error) {
	var resp CreateCustomerResponse
	if err := c.invoke(ctx, ActionCreateCustomer, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) CreateSubscription(ctx context.Context, req CreateSubscriptionRequest) (*CreateSubscriptionResponse, error) {
	var resp CreateSubscriptionResponse
	if err := c.invoke(ctx, ActionCreateSubscription, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) GetPixQRCode(ctx context.Context, req PixQRCodeRequest) (*PixQRCodeResponse, error) {
	var resp PixQRCodeResponse
	if err := c.invoke(ctx, ActionGetPixQRCode, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *httpClient) CancelSubscription(ctx context.Context, req CancelSubscriptionRequest) error {
	return c.invoke(ctx, ActionCancelSubscription, req, nil)
}

// invoke POSTs the payload to <baseURL>/<action> and decodes the JSON
// result into out when non-nil.
func (c *httpClient) invoke(ctx context.Context, action string, payload interface{}, out interface{}) error {
	op := "gateway." + action

	body, err := json.Marshal(payload)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, op, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		metrics.GatewayCalls.WithLabelValues(action, "error").Inc()
		return apperr.Wrap(apperr.KindPaymentGateway, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.GatewayCalls.WithLabelValues(action, "error").Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Warn("gateway call failed",
			zap.String("action", action),
			zap.Int("status", resp.StatusCode))
		return apperr.New(apperr.KindPaymentGateway, op,
			fmt.Sprintf("gateway returned %d: %s", resp.StatusCode, string(snippet)))
	}

	metrics.GatewayCalls.WithLabelValues(action, "ok").Inc()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperr.Wrap(apperr.KindPaymentGateway, op, err)
	}
	return nil
}
