package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

// WithdrawalTaskCount is how many active tasks a withdrawal requires.
const WithdrawalTaskCount = 3

// Balance is the ledger-derived wallet view.
type Balance struct {
	Balance      decimal.Decimal `json:"balance"`
	BalanceMinor int64           `json:"balance_minor"`
	Points       int             `json:"points"`
	Currency     string          `json:"currency"`
}

// NewBalance converts a minor-unit balance for display.
func NewBalance(minor int64, points int) Balance {
	return Balance{
		Balance:      money.ToMajor(minor),
		BalanceMinor: minor,
		Points:       points,
		Currency:     money.Currency,
	}
}

// WithdrawalRequest is a user's withdrawal intent.
type WithdrawalRequest struct {
	UserID      uuid.UUID
	AmountMinor int64
	Destination string
}

// WithdrawalDecision is an admin verdict on a pending withdrawal.
type WithdrawalDecision struct {
	TransactionID uuid.UUID
	AdminID       uuid.UUID
	Approved      bool
	Reason        string
}

// TransactionView is the boundary representation of a transaction.
type TransactionView struct {
	ID          uuid.UUID            `json:"id"`
	Type        transaction.Type     `json:"type"`
	Amount      decimal.Decimal      `json:"amount"`
	AmountMinor int64                `json:"amount_minor"`
	Status      transaction.Status   `json:"status"`
	Reference   string               `json:"reference"`
	Description string               `json:"description"`
	Metadata    transaction.Metadata `json:"metadata"`
	CreatedAt   time.Time            `json:"created_at"`
	ProcessedAt *time.Time           `json:"processed_at,omitempty"`
}

// NewTransactionView converts t for API responses.
func NewTransactionView(t transaction.Transaction) TransactionView {
	return TransactionView{
		ID:          t.ID,
		Type:        t.Type,
		Amount:      money.ToMajor(t.AmountMinor),
		AmountMinor: t.AmountMinor,
		Status:      t.Status,
		Reference:   t.Reference,
		Description: t.Description,
		Metadata:    t.Metadata,
		CreatedAt:   t.CreatedAt,
		ProcessedAt: t.ProcessedAt,
	}
}

// NewTransactionViews converts a slice.
func NewTransactionViews(items []transaction.Transaction) []TransactionView {
	out := make([]TransactionView, 0, len(items))
	for _, t := range items {
		out = append(out, NewTransactionView(t))
	}
	return out
}
