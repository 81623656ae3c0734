package ledger

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AccountType enumerates the ledger participants the platform supports.
type AccountType string

const (
	AccountUserWallet          AccountType = "user_wallet"
	AccountPlatformLiability   AccountType = "platform_liability"
	AccountDepositsIncoming    AccountType = "deposits_incoming"
	AccountWithdrawalsOutgoing AccountType = "withdrawals_outgoing"
)

// SystemAccountTypes are the account types with exactly one user-less account each.
var SystemAccountTypes = []AccountType{
	AccountPlatformLiability,
	AccountDepositsIncoming,
	AccountWithdrawalsOutgoing,
}

// IsSystem reports whether t is owned by the platform rather than a user.
func (t AccountType) IsSystem() bool {
	return t != AccountUserWallet
}

// Account is a ledger participant. UserID is set only for user wallets.
type Account struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	Type      AccountType   `db:"type" json:"type"`
	UserID    uuid.NullUUID `db:"user_id" json:"user_id"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
}

// Entry is one immutable economic event.
type Entry struct {
	ID             uuid.UUID `db:"id" json:"id"`
	IdempotencyKey string    `db:"idempotency_key" json:"idempotency_key"`
	Metadata       Meta      `db:"metadata" json:"metadata"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`

	Lines []Line `db:"-" json:"lines"`
}

// Line is one side of a posting.
type Line struct {
	ID          uuid.UUID `db:"id" json:"id"`
	EntryID     uuid.UUID `db:"entry_id" json:"entry_id"`
	AccountID   uuid.UUID `db:"account_id" json:"account_id"`
	DebitMinor  int64     `db:"debit_minor" json:"debit_minor"`
	CreditMinor int64     `db:"credit_minor" json:"credit_minor"`
}

// LineInput describes a line to be posted.
type LineInput struct {
	AccountID   uuid.UUID
	DebitMinor  int64
	CreditMinor int64
}

// Transfer builds the two lines that move amount from one account to another:
// the source is debited and the destination credited.
func Transfer(from, to uuid.UUID, amountMinor int64) []LineInput {
	return []LineInput{
		{AccountID: from, DebitMinor: amountMinor},
		{AccountID: to, CreditMinor: amountMinor},
	}
}

// Meta is free-form entry metadata stored as JSONB.
type Meta map[string]any

// Value implements driver.Valuer.
func (m Meta) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Meta) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Meta{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("ledger: unsupported metadata type")
	}
	out := Meta{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}

// Kind returns the "kind" metadata label, used for metrics.
func (m Meta) Kind() string {
	if k, ok := m["kind"].(string); ok && k != "" {
		return k
	}
	return "other"
}
