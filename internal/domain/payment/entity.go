package payment

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
)

// Deposit limits in minor units.
const (
	MinDepositMinor int64 = 1000    // 10 ETB
	MaxDepositMinor int64 = 5000000 // 50,000 ETB
)

// DepositResult is returned when a deposit is started.
type DepositResult struct {
	TransactionID uuid.UUID          `json:"transaction_id"`
	Reference     string             `json:"reference"`
	Amount        decimal.Decimal    `json:"amount"`
	AmountMinor   int64              `json:"amount_minor"`
	Method        string             `json:"method"`
	Status        transaction.Status `json:"status"`
	CheckoutURL   string             `json:"checkout_url,omitempty"`
}

// SettlementResult reports the outcome of a settlement attempt.
type SettlementResult struct {
	Reference        string             `json:"reference"`
	Status           transaction.Status `json:"status"`
	Settled          bool               `json:"settled"`
	AlreadyProcessed bool               `json:"already_processed"`

	transaction *transaction.Transaction
}

// WebhookResult is what a provider webhook receives back.
type WebhookResult struct {
	Processed bool   `json:"processed"`
	Reference string `json:"reference,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// DepositKey is the ledger idempotency key of a deposit settlement.
func DepositKey(reference string) string {
	return "deposit:" + reference
}

func newSettlement(t *transaction.Transaction, settled bool) *SettlementResult {
	return &SettlementResult{
		Reference:        t.Reference,
		Status:           t.Status,
		Settled:          settled,
		AlreadyProcessed: !settled,
		transaction:      t,
	}
}
