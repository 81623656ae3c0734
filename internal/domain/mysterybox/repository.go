package mysterybox

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// Repository persists opened boxes.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates mystery box repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const boxColumns = `b.id, b.user_id, b.week_start, b.reward_type, b.reward_minor, b.points_spent, b.opened_at`

func (r *Repository) OpenedInWeek(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, weekStart time.Time) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `
		SELECT EXISTS (SELECT 1 FROM mystery_boxes WHERE user_id = $1 AND week_start = $2)
	`, userID, weekStart)
	return exists, err
}

// Insert stores a box; a second box in the same week is ErrAlreadyOpened.
func (r *Repository) Insert(ctx context.Context, q sqlx.ExtContext, b *Box) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	err := sqlx.GetContext(ctx, q, &b.OpenedAt, `
		INSERT INTO mystery_boxes (id, user_id, week_start, reward_type, reward_minor, points_spent)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING opened_at
	`, b.ID, b.UserID, b.WeekStart, b.RewardType, b.RewardMinor, b.PointsSpent)
	if database.IsUniqueViolation(err) {
		return ErrAlreadyOpened
	}
	return err
}

func (r *Repository) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]Box, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM mystery_boxes WHERE user_id = $1`, userID); err != nil {
		return nil, 0, err
	}
	var boxes []Box
	err := r.db.SelectContext(ctx, &boxes, `
		SELECT `+boxColumns+` FROM mystery_boxes b
		WHERE b.user_id = $1
		ORDER BY b.opened_at DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	return boxes, total, err
}

func (r *Repository) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	var s Stats
	err := r.db.GetContext(ctx, &s, `
		SELECT COUNT(*) AS total_boxes,
			COALESCE(SUM(points_spent), 0) AS total_points,
			COALESCE(SUM(reward_minor), 0) AS total_minor
		FROM mystery_boxes WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	err = r.db.SelectContext(ctx, &s.RewardBreakdown, `
		SELECT reward_type, COUNT(*) AS count, COALESCE(SUM(reward_minor), 0) AS total_minor
		FROM mystery_boxes WHERE user_id = $1
		GROUP BY reward_type
		ORDER BY total_minor DESC
	`, userID)
	return &s, err
}

func (r *Repository) ListAll(ctx context.Context, limit, offset int) ([]AdminBox, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM mystery_boxes`); err != nil {
		return nil, 0, err
	}
	var boxes []AdminBox
	err := r.db.SelectContext(ctx, &boxes, `
		SELECT `+boxColumns+`, u.phone_number AS user_phone
		FROM mystery_boxes b
		JOIN users u ON u.id = b.user_id
		ORDER BY b.opened_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return boxes, total, err
}
