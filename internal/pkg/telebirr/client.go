// Package telebirr creates Telebirr checkout orders and decodes payment notifications.
package telebirr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Config holds Telebirr API configuration
type Config struct {
	BaseURL       string
	AppID         string
	MerchantCode  string
	WebhookSecret string
	NotifyURL     string
	// CheckoutURL receives the order reference when BaseURL is empty: <CheckoutURL>/<reference>.
	CheckoutURL string
	Timeout     time.Duration
}

// Client represents Telebirr payment gateway client
type Client struct {
	httpClient *http.Client
	config     Config
}

// OrderRequest describes a checkout order.
type OrderRequest struct {
	MerchantOrderID string `json:"merch_order_id"`
	Amount          string `json:"total_amount"`
	Currency        string `json:"trans_currency"`
	Title           string `json:"title"`
	AppID           string `json:"appid"`
	MerchantCode    string `json:"merch_code"`
	NotifyURL       string `json:"notify_url,omitempty"`
}

// OrderResponse is Telebirr's answer to an order request.
type OrderResponse struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		PrepayID string `json:"prepay_id"`
		ToPayURL string `json:"toPayUrl"`
	} `json:"data"`
}

// NewClient creates new Telebirr API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// WebhookSecret returns the shared secret for notification signatures.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.config.WebhookSecret
}

// CreateOrder registers an order and returns where the user pays it.
// Without a BaseURL the order is paid on the hosted page at CheckoutURL.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	if strings.TrimSpace(req.MerchantOrderID) == "" {
		return nil, fmt.Errorf("validation error: merch_order_id must be non-empty")
	}
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("telebirr client is not initialized")
	}

	if strings.TrimSpace(c.config.BaseURL) == "" {
		var out OrderResponse
		out.Code = "0"
		out.Data.ToPayURL = strings.TrimRight(c.config.CheckoutURL, "/") + "/" + req.MerchantOrderID
		return &out, nil
	}
	if strings.TrimSpace(c.config.MerchantCode) == "" {
		return nil, fmt.Errorf("telebirr config error: merchant_code is empty")
	}

	if req.Currency == "" {
		req.Currency = "ETB"
	}
	req.AppID = c.config.AppID
	req.MerchantCode = c.config.MerchantCode
	if req.NotifyURL == "" {
		req.NotifyURL = c.config.NotifyURL
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode telebirr request: %w", err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + "/payment/v1/merchant/preOrder"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("telebirr api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-APP-Key", c.config.AppID)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("telebirr api call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("telebirr api call failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out OrderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to parse telebirr response: %w", err)
	}
	if out.Data.ToPayURL == "" {
		return nil, fmt.Errorf("telebirr order rejected: code=%s msg=%s", out.Code, out.Msg)
	}
	return &out, nil
}

// APIError is a non-2xx answer from Telebirr.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telebirr api returned non-2xx status: %d", e.StatusCode)
}

func (e *APIError) HTTPStatus() int      { return e.StatusCode }
func (e *APIError) ResponseBody() string { return e.Body }
