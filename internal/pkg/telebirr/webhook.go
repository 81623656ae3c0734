package telebirr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidPayload = errors.New("invalid telebirr notification")

// Notification is a decoded payment notification.
type Notification struct {
	Reference     string
	Status        string
	TransactionID string
	Amount        *decimal.Decimal
}

type rawNotification struct {
	Reference       string           `json:"reference"`
	OrderID         string           `json:"orderId"`
	MerchantOrderID string           `json:"merchantOrderId"`
	MerchOrderID    string           `json:"merch_order_id"`
	Status          string           `json:"status"`
	TradeStatus     string           `json:"trade_status"`
	TransactionID   string           `json:"transactionId"`
	PaymentOrderID  string           `json:"payment_order_id"`
	Amount          *decimal.Decimal `json:"amount"`
	TotalAmount     *decimal.Decimal `json:"total_amount"`
}

// Succeeded reports whether the notification confirms payment.
func (n *Notification) Succeeded() bool {
	switch strings.ToLower(n.Status) {
	case "success", "completed", "paid":
		return true
	}
	return false
}

// ParseNotification decodes a notification body. The signature must be checked first.
func ParseNotification(payload []byte) (*Notification, error) {
	var raw rawNotification
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, ErrInvalidPayload
	}

	n := &Notification{
		Reference:     firstNonEmpty(raw.Reference, raw.OrderID, raw.MerchantOrderID, raw.MerchOrderID),
		Status:        firstNonEmpty(raw.Status, raw.TradeStatus),
		TransactionID: firstNonEmpty(raw.TransactionID, raw.PaymentOrderID),
		Amount:        raw.Amount,
	}
	if n.Amount == nil {
		n.Amount = raw.TotalAmount
	}
	if n.Reference == "" {
		return nil, ErrInvalidPayload
	}
	return n, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
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
