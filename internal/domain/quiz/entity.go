package quiz

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quiz is a true/false question.
type Quiz struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	Question    string        `db:"question" json:"question"`
	Answer      bool          `db:"answer" json:"answer"`
	Points      int           `db:"points" json:"points"`
	Difficulty  string        `db:"difficulty" json:"difficulty"`
	WeightMinor sql.NullInt64 `db:"weight_minor" json:"-"`
	IsActive    bool          `db:"is_active" json:"is_active"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// Weight returns the money moved per answer, falling back to def.
func (q *Quiz) Weight(def int64) int64 {
	if q.WeightMinor.Valid && q.WeightMinor.Int64 > 0 {
		return q.WeightMinor.Int64
	}
	return def
}

// PublicQuiz is a quiz without its answer.
type PublicQuiz struct {
	ID         uuid.UUID `json:"id"`
	Question   string    `json:"question"`
	Points     int       `json:"points"`
	Difficulty string    `json:"difficulty"`
}

// Public hides the answer.
func (q *Quiz) Public() PublicQuiz {
	return PublicQuiz{ID: q.ID, Question: q.Question, Points: q.Points, Difficulty: q.Difficulty}
}

// Attempt is a user's single answer to a quiz.
type Attempt struct {
	ID           uuid.UUID `db:"id"`
	UserID       uuid.UUID `db:"user_id"`
	QuizID       uuid.UUID `db:"quiz_id"`
	UserAnswer   bool      `db:"user_answer"`
	IsCorrect    bool      `db:"is_correct"`
	PointsEarned int       `db:"points_earned"`
	CreatedAt    time.Time `db:"created_at"`
}

// AnswerResult is returned to the user after settlement.
type AnswerResult struct {
	IsCorrect          bool            `json:"is_correct"`
	PointsEarned       int             `json:"points_earned"`
	BalanceChange      decimal.Decimal `json:"balance_change"`
	BalanceChangeMinor int64           `json:"balance_change_minor"`
	NewPoints          int             `json:"new_points"`
	Reference          string          `json:"reference"`
}

// Stats summarises a user's quiz history.
type Stats struct {
	TotalAttempts     int     `db:"total_attempts" json:"total_attempts"`
	CorrectAttempts   int     `db:"correct_attempts" json:"correct_attempts"`
	IncorrectAttempts int     `db:"-" json:"incorrect_attempts"`
	Accuracy          float64 `db:"-" json:"accuracy"`
	TotalPointsEarned int     `db:"total_points_earned" json:"total_points_earned"`
}

// PointsDelta is +points for a correct answer and -floor(points/2) otherwise.
func PointsDelta(correct bool, points int) int {
	if correct {
		return points
	}
	return -(points / 2)
}

// SettlementKey is the ledger idempotency key for an attempt.
func SettlementKey(correct bool, attemptID uuid.UUID) string {
	if correct {
		return "quiz:correct:" + attemptID.String()
	}
	return "quiz:wrong:" + attemptID.String()
}
