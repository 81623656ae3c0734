package referral

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// Repository persists daily login claims.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates referral repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// GetDailyLogin returns the claim for date (YYYY-MM-DD), or nil.
func (r *Repository) GetDailyLogin(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, date string) (*DailyLogin, error) {
	var d DailyLogin
	err := sqlx.GetContext(ctx, q, &d, `
		SELECT id, user_id, to_char(login_date, 'YYYY-MM-DD') AS login_date, streak, created_at
		FROM daily_logins
		WHERE user_id = $1 AND login_date = $2::date
	`, userID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// InsertDailyLogin records a claim; a second claim for the same day is ErrDailyBonusClaimed.
func (r *Repository) InsertDailyLogin(ctx context.Context, q sqlx.ExtContext, d *DailyLogin) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	err := sqlx.GetContext(ctx, q, &d.CreatedAt, `
		INSERT INTO daily_logins (id, user_id, login_date, streak)
		VALUES ($1, $2, $3::date, $4)
		RETURNING created_at
	`, d.ID, d.UserID, d.LoginDate, d.Streak)
	if database.IsUniqueViolation(err) {
		return ErrDailyBonusClaimed
	}
	return err
}
