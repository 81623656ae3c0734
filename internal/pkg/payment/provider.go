package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Provider constants
const (
	ProviderTelebirr = "telebirr"
	ProviderChapa    = "chapa"
)

// Standardised payment statuses.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

var (
	ErrProviderNotFound = errors.New("payment provider not found")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

// PaymentProvider defines the interface that all payment providers must implement
type PaymentProvider interface {
	// CreatePayment initiates a payment and returns the URL the user pays at
	CreatePayment(ctx context.Context, req ProviderPaymentRequest) (*ProviderPaymentResponse, error)

	// VerifyWebhook checks the HMAC signature over the raw, unparsed body
	VerifyWebhook(payload []byte, signature string) bool

	// ParseWebhook parses provider-specific webhook data into standardized format
	ParseWebhook(payload []byte) (*WebhookEvent, error)

	// Name returns the provider identifier
	Name() string
}

// Verifier is implemented by providers that can be polled for a payment's state.
type Verifier interface {
	VerifyPayment(ctx context.Context, reference string) (*WebhookEvent, error)
}

// ProviderPaymentRequest is a standardized payment creation request
type ProviderPaymentRequest struct {
	AmountMinor int64
	Reference   string // our transaction reference, echoed back in webhooks
	Description string
	UserID      string
	PhoneNumber string
	ReturnURL   string
	CallbackURL string
}

// ProviderPaymentResponse is a standardized payment creation response
type ProviderPaymentResponse struct {
	PaymentID  string
	PaymentURL string
	Status     string
}

// WebhookEvent is a standardized webhook event across all providers
type WebhookEvent struct {
	Provider    string
	EventType   string
	Reference   string
	ExternalID  string
	AmountMinor *int64 // nil when the provider did not report an amount
	Status      string // StatusCompleted, StatusFailed or StatusPending
	RawData     json.RawMessage
}

// Succeeded reports whether the event confirms payment.
func (e *WebhookEvent) Succeeded() bool {
	return e.Status == StatusCompleted
}

// ProviderFactory holds the configured providers by name
type ProviderFactory struct {
	providers map[string]PaymentProvider
}

// NewProviderFactory creates a new provider factory
func NewProviderFactory(providers ...PaymentProvider) *ProviderFactory {
	f := &ProviderFactory{providers: make(map[string]PaymentProvider)}
	for _, p := range providers {
		f.Register(p)
	}
	return f
}

// Register adds a payment provider under its Name
func (f *ProviderFactory) Register(provider PaymentProvider) {
	f.providers[provider.Name()] = provider
}

// Get retrieves a payment provider by name
func (f *ProviderFactory) Get(name string) (PaymentProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	provider, exists := f.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return provider, nil
}

// List returns all registered provider names, sorted
func (f *ProviderFactory) List() []string {
	names := make([]string, 0, len(f.providers))
	for name := range f.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UpstreamDetails returns the HTTP status and body carried by a provider client error,
// or 0 and "" when err did not come from a provider response.
func UpstreamDetails(err error) (int, string) {
	var httpErr interface {
		HTTPStatus() int
		ResponseBody() string
	}
	if errors.As(err, &httpErr) {
		return httpErr.HTTPStatus(), httpErr.ResponseBody()
	}
	return 0, ""
}

// MapStatusToInternal converts a provider status to StatusCompleted, StatusFailed or StatusPending
func MapStatusToInternal(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "success", "completed", "paid", "charge.success":
		return StatusCompleted
	case "failed", "cancelled", "canceled", "declined", "rejected", "error", "charge.failed":
		return StatusFailed
	default:
		return StatusPending
	}
}
