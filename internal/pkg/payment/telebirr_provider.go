package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
	"github.com/quizbirr/quizbirr-api/internal/pkg/telebirr"
)

// TelebirrProvider implements PaymentProvider for Telebirr
type TelebirrProvider struct {
	client *telebirr.Client
}

// NewTelebirrProvider creates a new Telebirr payment provider
func NewTelebirrProvider(client *telebirr.Client) *TelebirrProvider {
	return &TelebirrProvider{client: client}
}

func (p *TelebirrProvider) Name() string { return ProviderTelebirr }

// CreatePayment creates a checkout order keyed by our reference
func (p *TelebirrProvider) CreatePayment(ctx context.Context, req ProviderPaymentRequest) (*ProviderPaymentResponse, error) {
	resp, err := p.client.CreateOrder(ctx, telebirr.OrderRequest{
		MerchantOrderID: req.Reference,
		Amount:          money.Format(req.AmountMinor),
		Title:           req.Description,
		NotifyURL:       req.CallbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("telebirr create order failed: %w", err)
	}
	return &ProviderPaymentResponse{
		PaymentID:  resp.Data.PrepayID,
		PaymentURL: resp.Data.ToPayURL,
		Status:     StatusPending,
	}, nil
}

func (p *TelebirrProvider) VerifyWebhook(payload []byte, signature string) bool {
	return telebirr.VerifySignature(payload, signature, p.client.WebhookSecret())
}

func (p *TelebirrProvider) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	n, err := telebirr.ParseNotification(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	e := &WebhookEvent{
		Provider:   ProviderTelebirr,
		EventType:  n.Status,
		Reference:  n.Reference,
		ExternalID: n.TransactionID,
		Status:     MapStatusToInternal(n.Status),
		RawData:    json.RawMessage(payload),
	}
	if n.Amount != nil {
		minor, err := money.ExactMinor(*n.Amount)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		e.AmountMinor = &minor
	}
	return e, nil
}
