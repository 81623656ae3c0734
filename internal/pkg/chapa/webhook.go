package chapa

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// EventChargeSuccess is the only event that settles a deposit.
const EventChargeSuccess = "charge.success"

var ErrInvalidPayload = errors.New("invalid chapa webhook payload")

// WebhookEvent is the body Chapa posts to the webhook URL.
type WebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		ID       string          `json:"id"`
		Status   string          `json:"status"`
		Amount   decimal.Decimal `json:"amount"`
		Currency string          `json:"currency"`
		TxRef    string          `json:"tx_ref"`
	} `json:"data"`
}

// Succeeded reports whether the event is a successful charge.
func (e *WebhookEvent) Succeeded() bool {
	return e.Event == EventChargeSuccess
}

// ParseWebhook decodes a webhook body. The signature must be checked first.
func ParseWebhook(payload []byte) (*WebhookEvent, error) {
	var e WebhookEvent
	if err := json.Unmarshal(payload, &e); err != nil {
		return nil, ErrInvalidPayload
	}
	if e.Event == "" || strings.TrimSpace(e.Data.TxRef) == "" {
		return nil, ErrInvalidPayload
	}
	return &e, nil
}

// VerifySignature validates the hex HMAC-SHA256 of payload.
// It returns false when either the secret or the signature is missing.
func VerifySignature(payload []byte, signature string, secretKey string) bool {
	if secretKey == "" || signature == "" {
		return false
	}

	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(payload)
	expected := h.Sum(nil)

	given, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}

	return hmac.Equal(given, expected)
}

// GenerateSignature creates HMAC-SHA256 signature for testing
func GenerateSignature(payload []byte, secretKey string) string {
	if secretKey == "" {
		return ""
	}

	h := hmac.New(sha256.New, []byte(secretKey))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
