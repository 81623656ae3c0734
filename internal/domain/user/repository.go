package user

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// Repository defines user data access methods.
// Methods taking q run on the caller's unit of work when q is a transaction.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*User, error)
	GetForUpdate(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*User, error)
	GetByReferralCode(ctx context.Context, q sqlx.ExtContext, code string) (*User, error)
	GetByPhoneNumber(ctx context.Context, phone string) (*User, error)
	AddPoints(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, delta int) (int, error)
	SetReferredBy(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, code string) (bool, error)
	CountReferrals(ctx context.Context, code string) (total int, active int, err error)
	ListReferrals(ctx context.Context, code string, limit, offset int) ([]Referral, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates user repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const userColumns = `id, phone_number, role, points, referral_code, referred_by, is_active, created_at, updated_at`

func (r *repository) Create(ctx context.Context, user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = RoleUser
	}
	if user.ReferralCode == "" {
		code, err := NewReferralCode()
		if err != nil {
			return err
		}
		user.ReferralCode = code
	}

	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO users (id, phone_number, role, points, referral_code, referred_by, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		RETURNING is_active, created_at, updated_at
	`, user.ID, user.PhoneNumber, user.Role, user.Points, user.ReferralCode, user.ReferredBy).
		Scan(&user.IsActive, &user.CreatedAt, &user.UpdatedAt)
	if database.IsUniqueViolation(err) {
		return ErrDuplicatePhoneNumber
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *repository) GetForUpdate(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*User, error) {
	return r.getOne(ctx, q, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)
}

func (r *repository) GetByReferralCode(ctx context.Context, q sqlx.ExtContext, code string) (*User, error) {
	return r.getOne(ctx, q, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
}

func (r *repository) GetByPhoneNumber(ctx context.Context, phone string) (*User, error) {
	return r.getOne(ctx, r.db, `SELECT `+userColumns+` FROM users WHERE phone_number = $1`, phone)
}

func (r *repository) getOne(ctx context.Context, q sqlx.ExtContext, query string, arg any) (*User, error) {
	var u User
	err := sqlx.GetContext(ctx, q, &u, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// AddPoints applies delta and returns the new total. Points may go negative only through
// quiz penalties; callers spending points check the balance under GetForUpdate first.
func (r *repository) AddPoints(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, delta int) (int, error) {
	var points int
	err := sqlx.GetContext(ctx, q, &points, `
		UPDATE users SET points = points + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING points
	`, id, delta)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrUserNotFound
	}
	return points, err
}

// SetReferredBy records the referrer code once. It reports false when a referrer was
// already set.
func (r *repository) SetReferredBy(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, code string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE users SET referred_by = $2, updated_at = NOW()
		WHERE id = $1 AND referred_by IS NULL
	`, id, code)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *repository) CountReferrals(ctx context.Context, code string) (int, int, error) {
	var counts struct {
		Total  int `db:"total"`
		Active int `db:"active"`
	}
	err := r.db.GetContext(ctx, &counts, `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE EXISTS (
				SELECT 1 FROM task_submissions s WHERE s.user_id = u.id AND s.status = 'approved'
			)) AS active
		FROM users u
		WHERE u.referred_by = $1
	`, code)
	return counts.Total, counts.Active, err
}

func (r *repository) ListReferrals(ctx context.Context, code string, limit, offset int) ([]Referral, error) {
	var refs []Referral
	err := r.db.SelectContext(ctx, &refs, `
		SELECT u.id, u.phone_number, u.created_at,
			EXISTS (
				SELECT 1 FROM task_submissions s WHERE s.user_id = u.id AND s.status = 'approved'
			) AS is_active
		FROM users u
		WHERE u.referred_by = $1
		ORDER BY u.created_at DESC
		LIMIT $2 OFFSET $3
	`, code, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range refs {
		refs[i].PhoneNumber = MaskPhone(refs[i].PhoneNumber)
	}
	return refs, nil
}

// NewReferralCode returns an 8 character uppercase code.
func NewReferralCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}
