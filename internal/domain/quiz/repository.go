package quiz

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// Repository handles quiz and attempt persistence.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates quiz repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const quizColumns = `id, question, answer, points, difficulty, weight_minor, is_active, created_at`

func (r *Repository) Create(ctx context.Context, q *Quiz) error {
	if q.ID == uuid.Nil {
		q.ID = uuid.New()
	}
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO quizzes (id, question, answer, points, difficulty, weight_minor, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, q.ID, q.Question, q.Answer, q.Points, q.Difficulty, q.WeightMinor, q.IsActive).Scan(&q.CreatedAt)
}

func (r *Repository) Update(ctx context.Context, q *Quiz) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE quizzes SET question = $2, answer = $3, points = $4, difficulty = $5, weight_minor = $6, is_active = $7
		WHERE id = $1
	`, q.ID, q.Question, q.Answer, q.Points, q.Difficulty, q.WeightMinor, q.IsActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrQuizNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*Quiz, error) {
	var quiz Quiz
	err := sqlx.GetContext(ctx, q, &quiz, `SELECT `+quizColumns+` FROM quizzes WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &quiz, nil
}

// Unanswered returns up to limit active quizzes the user has not attempted.
func (r *Repository) Unanswered(ctx context.Context, userID uuid.UUID, limit int) ([]Quiz, error) {
	var quizzes []Quiz
	err := r.db.SelectContext(ctx, &quizzes, `
		SELECT `+quizColumns+` FROM quizzes q
		WHERE q.is_active = TRUE
		  AND NOT EXISTS (SELECT 1 FROM quiz_attempts a WHERE a.quiz_id = q.id AND a.user_id = $1)
		ORDER BY q.created_at DESC
		LIMIT $2
	`, userID, limit)
	return quizzes, err
}

func (r *Repository) List(ctx context.Context, limit, offset int) ([]Quiz, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM quizzes`); err != nil {
		return nil, 0, err
	}
	var quizzes []Quiz
	err := r.db.SelectContext(ctx, &quizzes, `
		SELECT `+quizColumns+` FROM quizzes ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	return quizzes, total, err
}

func (r *Repository) AttemptExists(ctx context.Context, q sqlx.ExtContext, userID, quizID uuid.UUID) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q, &exists, `
		SELECT EXISTS (SELECT 1 FROM quiz_attempts WHERE user_id = $1 AND quiz_id = $2)
	`, userID, quizID)
	return exists, err
}

// InsertAttempt stores an attempt; a second attempt on the same quiz is ErrAlreadyAnswered.
func (r *Repository) InsertAttempt(ctx context.Context, q sqlx.ExtContext, a *Attempt) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := sqlx.GetContext(ctx, q, &a.CreatedAt, `
		INSERT INTO quiz_attempts (id, user_id, quiz_id, user_answer, is_correct, points_earned)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, a.ID, a.UserID, a.QuizID, a.UserAnswer, a.IsCorrect, a.PointsEarned)
	if database.IsUniqueViolation(err) {
		return ErrAlreadyAnswered
	}
	return err
}

func (r *Repository) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	var s Stats
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*) AS total_attempts,
			COUNT(*) FILTER (WHERE is_correct) AS correct_attempts,
			COALESCE(SUM(points_earned), 0) AS total_points_earned
		FROM quiz_attempts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
