package transaction

import (
	"time"

	"github.com/google/uuid"
)

// Type is the user-facing kind of money event.
type Type string

const (
	TypeDeposit    Type = "deposit"
	TypeWithdrawal Type = "withdrawal"
	TypeQuiz       Type = "quiz"
	TypeBonus      Type = "bonus"
	TypeReferral   Type = "referral"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeQuiz, TypeBonus, TypeReferral:
		return true
	}
	return false
}

// Status is the lifecycle state. pending is the only non-terminal status.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Reference prefixes per flow.
const (
	PrefixDeposit    = "DEP"
	PrefixWithdrawal = "WD"
	PrefixQuiz       = "QUIZ"
	PrefixMystery    = "MYSTERY"
	PrefixReferral   = "REF"
	PrefixTask       = "TASK"
	PrefixDaily      = "DAILY"
)

// Transaction is the user-facing record mirroring one ledger entry.
// AmountMinor is signed: quiz penalties are recorded as negative amounts.
type Transaction struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	Type        Type       `json:"type"`
	AmountMinor int64      `json:"amount_minor"`
	Status      Status     `json:"status"`
	Reference   string     `json:"reference"`
	Description string     `json:"description"`
	Metadata    Metadata   `json:"metadata"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// IsPending reports whether the transaction can still transition.
func (t *Transaction) IsPending() bool {
	return t.Status == StatusPending
}

// Page is one page of transactions.
type Page struct {
	Items      []Transaction `json:"items"`
	Total      int           `json:"total"`
	Page       int           `json:"page"`
	Limit      int           `json:"limit"`
	TotalPages int           `json:"total_pages"`
}

// Filter narrows admin listings. Zero values match everything.
type Filter struct {
	UserID uuid.UUID
	Type   Type
	Status Status
	Page   int
	Limit  int
}

// NormalizePage clamps page to >=1 and limit to 1..100 (default 20).
func NormalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

// TotalPages returns ceil(total/limit).
func TotalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}
