package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

// row is the persisted layout; amount is NUMERIC major units.
type row struct {
	ID          uuid.UUID       `db:"id"`
	UserID      uuid.UUID       `db:"user_id"`
	Type        Type            `db:"type"`
	Amount      decimal.Decimal `db:"amount"`
	Status      Status          `db:"status"`
	Reference   string          `db:"reference"`
	Description string          `db:"description"`
	Metadata    Metadata        `db:"metadata"`
	CreatedAt   time.Time       `db:"created_at"`
	ProcessedAt sql.NullTime    `db:"processed_at"`
}

func (r row) toEntity() Transaction {
	t := Transaction{
		ID:          r.ID,
		UserID:      r.UserID,
		Type:        r.Type,
		AmountMinor: money.ToMinor(r.Amount),
		Status:      r.Status,
		Reference:   r.Reference,
		Description: r.Description,
		Metadata:    r.Metadata,
		CreatedAt:   r.CreatedAt,
	}
	if r.ProcessedAt.Valid {
		at := r.ProcessedAt.Time
		t.ProcessedAt = &at
	}
	return t
}

const selectColumns = `id, user_id, type, amount, status, reference, description, metadata, created_at, processed_at`

// Repository persists transaction records.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates transaction repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// DB returns the pool for reads outside a unit of work.
func (r *Repository) DB() *sqlx.DB {
	return r.db
}

// Insert writes t and fills CreatedAt.
func (r *Repository) Insert(ctx context.Context, q sqlx.ExtContext, t *Transaction) error {
	var processedAt any
	if t.ProcessedAt != nil {
		processedAt = *t.ProcessedAt
	}
	err := sqlx.GetContext(ctx, q, &t.CreatedAt, `
		INSERT INTO transactions (id, user_id, type, amount, status, reference, description, metadata, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, t.ID, t.UserID, t.Type, money.ToMajor(t.AmountMinor), t.Status, t.Reference, t.Description, t.Metadata, processedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicateReference
	}
	return err
}

// GetByID returns nil, nil when absent.
func (r *Repository) GetByID(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+selectColumns+` FROM transactions WHERE id = $1`, id)
}

// GetByReference returns nil, nil when absent.
func (r *Repository) GetByReference(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+selectColumns+` FROM transactions WHERE reference = $1`, reference)
}

// GetForUpdate row-locks the transaction until the surrounding unit of work ends.
func (r *Repository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+selectColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id)
}

// GetByReferenceForUpdate is GetForUpdate keyed by reference.
func (r *Repository) GetByReferenceForUpdate(ctx context.Context, q sqlx.ExtContext, reference string) (*Transaction, error) {
	return r.getOne(ctx, q, `SELECT `+selectColumns+` FROM transactions WHERE reference = $1 FOR UPDATE`, reference)
}

func (r *Repository) getOne(ctx context.Context, q sqlx.ExtContext, query string, arg any) (*Transaction, error) {
	var rw row
	err := sqlx.GetContext(ctx, q, &rw, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t := rw.toEntity()
	return &t, nil
}

// UpdateStatus moves a pending transaction to status. It reports false when the row was no
// longer pending, which makes concurrent transitions resolve to exactly one winner.
func (r *Repository) UpdateStatus(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status Status, meta Metadata) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE transactions
		SET status = $2, metadata = $3, processed_at = NOW()
		WHERE id = $1 AND status = 'pending'
	`, id, status, meta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// UpdateMetadata replaces metadata on a pending transaction.
func (r *Repository) UpdateMetadata(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, meta Metadata) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE transactions SET metadata = $2 WHERE id = $1 AND status = 'pending'
	`, id, meta)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// List returns one page matching f plus the total count.
func (r *Repository) List(ctx context.Context, f Filter) ([]Transaction, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.UserID != uuid.Nil {
		args = append(args, f.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		conds = append(conds, fmt.Sprintf("type = $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions`+where, args...); err != nil {
		return nil, 0, err
	}

	page, limit := NormalizePage(f.Page, f.Limit)
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM transactions%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		selectColumns, where, len(args)-1, len(args))

	var rows []row
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, err
	}

	items := make([]Transaction, 0, len(rows))
	for _, rw := range rows {
		items = append(items, rw.toEntity())
	}
	return items, total, nil
}

// ListStaleDeposits returns pending deposits funded by one of methods and created before cutoff.
func (r *Repository) ListStaleDeposits(ctx context.Context, methods []PaymentMethod, cutoff time.Time, limit int) ([]Transaction, error) {
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = string(m)
	}

	var rows []row
	err := r.db.SelectContext(ctx, &rows, `
		SELECT `+selectColumns+`
		FROM transactions
		WHERE type = 'deposit' AND status = 'pending' AND created_at < $1
		  AND metadata->'deposit'->>'method' = ANY($2)
		ORDER BY created_at
		LIMIT $3
	`, cutoff, pq.Array(names), limit)
	if err != nil {
		return nil, err
	}
	items := make([]Transaction, 0, len(rows))
	for _, rw := range rows {
		items = append(items, rw.toEntity())
	}
	return items, nil
}

// SumCompleted returns the minor-unit total of the user's completed transactions of type t.
func (r *Repository) SumCompleted(ctx context.Context, userID uuid.UUID, t Type) (int64, error) {
	var sum decimal.Decimal
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND type = $2 AND status = 'completed'
	`, userID, t)
	if err != nil {
		return 0, err
	}
	return money.ToMinor(sum), nil
}
