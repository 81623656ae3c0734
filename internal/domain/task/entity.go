package task

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

// PointsPerApproval is awarded on every approved submission.
const PointsPerApproval = 10

// Task is a promotional action users complete for a reward.
type Task struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Type        string    `db:"type" json:"type"`
	URL         string    `db:"url" json:"url"`
	RewardMinor int64     `db:"reward_minor" json:"reward_minor"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Reward returns the reward in major units.
func (t *Task) Reward() decimal.Decimal {
	return money.ToMajor(t.RewardMinor)
}

// SubmissionStatus is the review state of a submission.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "pending"
	SubmissionApproved SubmissionStatus = "approved"
	SubmissionRejected SubmissionStatus = "rejected"
)

// Submission is a user's claim to have completed a task.
type Submission struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	UserID          uuid.UUID        `db:"user_id" json:"user_id"`
	TaskID          uuid.UUID        `db:"task_id" json:"task_id"`
	Proof           string           `db:"proof" json:"proof"`
	Status          SubmissionStatus `db:"status" json:"status"`
	RejectionReason sql.NullString   `db:"rejection_reason" json:"-"`
	ReviewedBy      uuid.NullUUID    `db:"reviewed_by" json:"-"`
	ReviewedAt      sql.NullTime     `db:"reviewed_at" json:"-"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
}

// SubmissionWithTask is a submission joined with its task and submitter.
type SubmissionWithTask struct {
	Submission
	TaskTitle       string `db:"task_title"`
	TaskRewardMinor int64  `db:"task_reward_minor"`
	UserPhone       string `db:"user_phone"`
}

// ReviewResult is the outcome of an admin review.
type ReviewResult struct {
	Submission  *Submission `json:"submission"`
	PointsAdded int         `json:"points_added"`
	NewPoints   int         `json:"new_points,omitempty"`
	RewardMinor int64       `json:"reward_minor"`
	Reference   string      `json:"reference,omitempty"`
	// FirstApproval is set when this was the user's first approved submission.
	FirstApproval bool `json:"first_approval"`
}

// RewardKey is the ledger idempotency key for a submission payout.
func RewardKey(submissionID uuid.UUID) string {
	return "task:" + submissionID.String()
}
