// Package chapa is a minimal client for the Chapa hosted checkout API.
package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotConfigured is returned when no secret key is set.
var ErrNotConfigured = errors.New("chapa is not configured")

// Config holds Chapa API configuration
type Config struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string
	Timeout       time.Duration
}

// Client represents Chapa payment gateway client
type Client struct {
	httpClient *http.Client
	config     Config
}

// InitializeRequest is the body of POST /transaction/initialize.
type InitializeRequest struct {
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Email       string            `json:"email,omitempty"`
	FirstName   string            `json:"first_name,omitempty"`
	LastName    string            `json:"last_name,omitempty"`
	PhoneNumber string            `json:"phone_number,omitempty"`
	TxRef       string            `json:"tx_ref"`
	CallbackURL string            `json:"callback_url,omitempty"`
	ReturnURL   string            `json:"return_url,omitempty"`
	Description string            `json:"description,omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

// InitializeResponse is Chapa's answer to an initialize call.
type InitializeResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

// VerifyResponse is Chapa's answer to GET /transaction/verify/{tx_ref}.
type VerifyResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Data    struct {
		Status    string          `json:"status"`
		Amount    decimal.Decimal `json:"amount"`
		Currency  string          `json:"currency"`
		TxRef     string          `json:"tx_ref"`
		Reference string          `json:"reference"`
	} `json:"data"`
}

// Paid reports whether the verified charge succeeded.
func (r *VerifyResponse) Paid() bool {
	return strings.EqualFold(r.Data.Status, "success")
}

// NewClient creates new Chapa API client
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.chapa.co/v1"
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		config:     cfg,
	}
}

// Configured reports whether API calls can be made.
func (c *Client) Configured() bool {
	return c != nil && strings.TrimSpace(c.config.SecretKey) != ""
}

// WebhookSecret returns the shared secret for webhook signatures.
func (c *Client) WebhookSecret() string {
	if c == nil {
		return ""
	}
	return c.config.WebhookSecret
}

// Initialize creates a hosted checkout and returns its URL.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResponse, error) {
	if strings.TrimSpace(req.TxRef) == "" {
		return nil, fmt.Errorf("validation error: tx_ref must be non-empty")
	}
	if req.Currency == "" {
		req.Currency = "ETB"
	}

	var out InitializeResponse
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", req, &out); err != nil {
		return nil, err
	}
	if out.Data.CheckoutURL == "" {
		return nil, fmt.Errorf("chapa response has no checkout_url: %s", out.Message)
	}
	return &out, nil
}

// Verify asks Chapa for the current state of txRef.
func (c *Client) Verify(ctx context.Context, txRef string) (*VerifyResponse, error) {
	if strings.TrimSpace(txRef) == "" {
		return nil, fmt.Errorf("validation error: tx_ref must be non-empty")
	}
	var out VerifyResponse
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(txRef), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode chapa request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	base := strings.TrimRight(c.config.BaseURL, "/")
	httpReq, err := http.NewRequestWithContext(ctx, method, base+path, body)
	if err != nil {
		return fmt.Errorf("chapa api call failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.SecretKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("chapa api call failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("chapa api call failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to parse chapa response: %w", err)
	}
	return nil
}

// APIError is a non-2xx answer from Chapa.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chapa api returned non-2xx status: %d", e.StatusCode)
}

func (e *APIError) HTTPStatus() int      { return e.StatusCode }
func (e *APIError) ResponseBody() string { return e.Body }
