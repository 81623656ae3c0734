package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/quizbirr/quizbirr-api/internal/pkg/chapa"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

// ChapaProvider implements PaymentProvider and Verifier for Chapa
type ChapaProvider struct {
	client *chapa.Client
}

// NewChapaProvider creates a new Chapa payment provider
func NewChapaProvider(client *chapa.Client) *ChapaProvider {
	return &ChapaProvider{client: client}
}

func (p *ChapaProvider) Name() string { return ProviderChapa }

// CreatePayment initializes a hosted checkout keyed by our reference
func (p *ChapaProvider) CreatePayment(ctx context.Context, req ProviderPaymentRequest) (*ProviderPaymentResponse, error) {
	short := req.UserID
	if len(short) > 8 {
		short = short[:8]
	}
	resp, err := p.client.Initialize(ctx, chapa.InitializeRequest{
		Amount:      money.Format(req.AmountMinor),
		Currency:    money.Currency,
		Email:       fmt.Sprintf("user%s@quizbirr.app", short),
		FirstName:   "QuizBirr",
		LastName:    "User",
		PhoneNumber: req.PhoneNumber,
		TxRef:       req.Reference,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
		Description: req.Description,
		Meta:        map[string]string{"user_id": req.UserID},
	})
	if err != nil {
		return nil, fmt.Errorf("chapa initialize failed: %w", err)
	}
	return &ProviderPaymentResponse{
		PaymentURL: resp.Data.CheckoutURL,
		Status:     StatusPending,
	}, nil
}

func (p *ChapaProvider) VerifyWebhook(payload []byte, signature string) bool {
	return chapa.VerifySignature(payload, signature, p.client.WebhookSecret())
}

func (p *ChapaProvider) ParseWebhook(payload []byte) (*WebhookEvent, error) {
	e, err := chapa.ParseWebhook(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	status := StatusPending
	switch {
	case e.Succeeded():
		status = StatusCompleted
	case e.Data.Status != "":
		status = MapStatusToInternal(e.Data.Status)
		if status == StatusCompleted {
			// Only charge.success settles.
			status = StatusPending
		}
	}
	minor, err := money.ExactMinor(e.Data.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return &WebhookEvent{
		Provider:    ProviderChapa,
		EventType:   e.Event,
		Reference:   e.Data.TxRef,
		ExternalID:  e.Data.ID,
		AmountMinor: &minor,
		Status:      status,
		RawData:     json.RawMessage(payload),
	}, nil
}

// VerifyPayment polls Chapa for the state of reference
func (p *ChapaProvider) VerifyPayment(ctx context.Context, reference string) (*WebhookEvent, error) {
	resp, err := p.client.Verify(ctx, reference)
	if err != nil {
		return nil, fmt.Errorf("chapa verify failed: %w", err)
	}
	minor, err := money.ExactMinor(resp.Data.Amount)
	if err != nil {
		return nil, fmt.Errorf("chapa verify returned %w", err)
	}
	raw, _ := json.Marshal(resp)
	status := StatusCompleted
	if !resp.Paid() {
		status = MapStatusToInternal(resp.Data.Status)
	}
	return &WebhookEvent{
		Provider:    ProviderChapa,
		EventType:   "verify",
		Reference:   reference,
		ExternalID:  resp.Data.Reference,
		AmountMinor: &minor,
		Status:      status,
		RawData:     raw,
	}, nil
}
