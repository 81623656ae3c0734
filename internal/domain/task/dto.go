package task

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

type submitRequest struct {
	Proof string `json:"proof" validate:"max=2000"`
}

type reviewRequest struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason" validate:"max=500"`
}

type taskRequest struct {
	Title       string `json:"title" validate:"required,min=3,max=200"`
	Description string `json:"description" validate:"max=2000"`
	Type        string `json:"type" validate:"required,max=50"`
	URL         string `json:"url" validate:"omitempty,url"`
	Reward      string `json:"reward" validate:"required,money0"`
	IsActive    *bool  `json:"is_active"`
}

// TaskResponse is the API shape of a task.
type TaskResponse struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Type        string          `json:"type"`
	URL         string          `json:"url,omitempty"`
	Reward      decimal.Decimal `json:"reward"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
}

func TaskResponseFromEntity(t *Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Type:        t.Type,
		URL:         t.URL,
		Reward:      t.Reward(),
		IsActive:    t.IsActive,
		CreatedAt:   t.CreatedAt,
	}
}

// SubmissionResponse is the API shape of a submission.
type SubmissionResponse struct {
	ID              uuid.UUID        `json:"id"`
	TaskID          uuid.UUID        `json:"task_id"`
	UserID          uuid.UUID        `json:"user_id"`
	TaskTitle       string           `json:"task_title,omitempty"`
	TaskReward      *decimal.Decimal `json:"task_reward,omitempty"`
	UserPhone       string           `json:"user_phone,omitempty"`
	Proof           string           `json:"proof"`
	Status          SubmissionStatus `json:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

func SubmissionResponseFromEntity(s *Submission) SubmissionResponse {
	resp := SubmissionResponse{
		ID:              s.ID,
		TaskID:          s.TaskID,
		UserID:          s.UserID,
		Proof:           s.Proof,
		Status:          s.Status,
		RejectionReason: s.RejectionReason.String,
		CreatedAt:       s.CreatedAt,
	}
	if s.ReviewedAt.Valid {
		at := s.ReviewedAt.Time
		resp.ReviewedAt = &at
	}
	return resp
}

func submissionResponses(subs []SubmissionWithTask) []SubmissionResponse {
	out := make([]SubmissionResponse, 0, len(subs))
	for i := range subs {
		resp := SubmissionResponseFromEntity(&subs[i].Submission)
		reward := money.ToMajor(subs[i].TaskRewardMinor)
		resp.TaskTitle = subs[i].TaskTitle
		resp.TaskReward = &reward
		resp.UserPhone = subs[i].UserPhone
		out = append(out, resp)
	}
	return out
}
