package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// Repository is the SQL access layer for accounts, entries and lines.
// Methods taking a sqlx.ExtContext run on whatever handle the caller passes, which is
// the unit-of-work transaction for every write.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates ledger repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the pool for read-only queries outside a unit of work.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

const accountColumns = `id, type, user_id, created_at`

// EnsureSystemAccount inserts the system account of type t if absent.
func (r *Repository) EnsureSystemAccount(ctx context.Context, q sqlx.ExtContext, t AccountType) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_accounts (id, type)
		VALUES ($1, $2)
		ON CONFLICT (type) WHERE user_id IS NULL DO NOTHING
	`, uuid.New(), t)
	return err
}

// EnsureUserAccount inserts the (t, userID) account if absent and returns it.
func (r *Repository) EnsureUserAccount(ctx context.Context, q sqlx.ExtContext, t AccountType, userID uuid.UUID) (*Account, error) {
	if _, err := q.ExecContext(ctx, `
		INSERT INTO ledger_accounts (id, type, user_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (type, user_id) WHERE user_id IS NOT NULL DO NOTHING
	`, uuid.New(), t, userID); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: unknown user %s", ErrAccountsMissing, userID)
		}
		return nil, err
	}

	acc, err := r.GetUserAccount(ctx, q, t, userID)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, ErrAccountsMissing
	}
	return acc, nil
}

// GetSystemAccount returns nil, nil when the account does not exist.
func (r *Repository) GetSystemAccount(ctx context.Context, q sqlx.ExtContext, t AccountType) (*Account, error) {
	var acc Account
	err := sqlx.GetContext(ctx, q, &acc,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE type = $1 AND user_id IS NULL`, t)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// GetUserAccount returns nil, nil when the account does not exist.
func (r *Repository) GetUserAccount(ctx context.Context, q sqlx.ExtContext, t AccountType, userID uuid.UUID) (*Account, error) {
	var acc Account
	err := sqlx.GetContext(ctx, q, &acc,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE type = $1 AND user_id = $2`, t, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// LockAccount takes a row lock on the account until the surrounding transaction ends.
// Only user wallets are locked; system accounts stay lock-free.
func (r *Repository) LockAccount(ctx context.Context, q sqlx.ExtContext, accountID uuid.UUID) error {
	var id uuid.UUID
	err := sqlx.GetContext(ctx, q, &id, `SELECT id FROM ledger_accounts WHERE id = $1 FOR UPDATE`, accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAccountsMissing
	}
	return err
}

// Balance returns sum(credit) - sum(debit) over the account's lines.
func (r *Repository) Balance(ctx context.Context, q sqlx.ExtContext, accountID uuid.UUID) (int64, error) {
	var balance int64
	err := sqlx.GetContext(ctx, q, &balance, `
		SELECT COALESCE(SUM(credit_minor - debit_minor), 0)::BIGINT
		FROM ledger_lines
		WHERE account_id = $1
	`, accountID)
	return balance, err
}

// GetEntryByKey returns the entry with its lines, or nil, nil.
func (r *Repository) GetEntryByKey(ctx context.Context, q sqlx.ExtContext, key string) (*Entry, error) {
	var entry Entry
	err := sqlx.GetContext(ctx, q, &entry, `
		SELECT id, idempotency_key, metadata, created_at
		FROM ledger_entries
		WHERE idempotency_key = $1
	`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lines, err := r.ListLines(ctx, q, entry.ID)
	if err != nil {
		return nil, err
	}
	entry.Lines = lines
	return &entry, nil
}

// EntryExists reports whether an entry with key has been posted.
func (r *Repository) EntryExists(ctx context.Context, q sqlx.ExtContext, key string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists,
		`SELECT EXISTS (SELECT 1 FROM ledger_entries WHERE idempotency_key = $1)`, key)
	return exists, err
}

// ListLines returns the lines of one entry.
func (r *Repository) ListLines(ctx context.Context, q sqlx.ExtContext, entryID uuid.UUID) ([]Line, error) {
	var lines []Line
	err := sqlx.SelectContext(ctx, q, &lines, `
		SELECT id, entry_id, account_id, debit_minor, credit_minor
		FROM ledger_lines
		WHERE entry_id = $1
		ORDER BY debit_minor DESC, id
	`, entryID)
	return lines, err
}

// InsertEntry writes the entry header. It reports false when another entry already holds
// the idempotency key.
func (r *Repository) InsertEntry(ctx context.Context, q sqlx.ExtContext, e *Entry) (bool, error) {
	err := sqlx.GetContext(ctx, q, &e.CreatedAt, `
		INSERT INTO ledger_entries (id, idempotency_key, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (idempotency_key) DO NOTHING
		RETURNING created_at
	`, e.ID, e.IdempotencyKey, e.Metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// InsertLine writes one line.
func (r *Repository) InsertLine(ctx context.Context, q sqlx.ExtContext, l *Line) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO ledger_lines (id, entry_id, account_id, debit_minor, credit_minor)
		VALUES ($1, $2, $3, $4, $5)
	`, l.ID, l.EntryID, l.AccountID, l.DebitMinor, l.CreditMinor)
	if database.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: account %s", ErrAccountsMissing, l.AccountID)
	}
	return err
}

// UnbalancedEntries lists entries violating the double-entry invariants.
func (r *Repository) UnbalancedEntries(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.SelectContext(ctx, &ids, `
		SELECT e.id
		FROM ledger_entries e
		LEFT JOIN ledger_lines l ON l.entry_id = e.id
		GROUP BY e.id
		HAVING COUNT(l.id) < 2
		    OR COALESCE(SUM(l.debit_minor), 0) <> COALESCE(SUM(l.credit_minor), 0)
	`)
	return ids, err
}
