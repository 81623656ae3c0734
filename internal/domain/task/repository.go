package task

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// Repository handles task and submission persistence.
// It also serves withdrawal gating through ActiveTaskIDs and CountApproved.
type Repository struct {
	db *sqlx.DB
}

// NewRepository creates task repository
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

const taskColumns = `id, title, description, type, url, reward_minor, is_active, created_at`

const submissionColumns = `s.id, s.user_id, s.task_id, s.proof, s.status, s.rejection_reason,
	s.reviewed_by, s.reviewed_at, s.created_at`

func (r *Repository) Create(ctx context.Context, t *Task) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return r.db.QueryRowxContext(ctx, `
		INSERT INTO tasks (id, title, description, type, url, reward_minor, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at
	`, t.ID, t.Title, t.Description, t.Type, t.URL, t.RewardMinor, t.IsActive).Scan(&t.CreatedAt)
}

func (r *Repository) Update(ctx context.Context, t *Task) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET title = $2, description = $3, type = $4, url = $5, reward_minor = $6, is_active = $7
		WHERE id = $1
	`, t.ID, t.Title, t.Description, t.Type, t.URL, t.RewardMinor, t.IsActive)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *Repository) GetByID(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*Task, error) {
	var t Task
	err := sqlx.GetContext(ctx, q, &t, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *Repository) ListActive(ctx context.Context) ([]Task, error) {
	var tasks []Task
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT `+taskColumns+` FROM tasks WHERE is_active = TRUE ORDER BY created_at DESC
	`)
	return tasks, err
}

func (r *Repository) ListAll(ctx context.Context, limit, offset int) ([]Task, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM tasks`); err != nil {
		return nil, 0, err
	}
	var tasks []Task
	err := r.db.SelectContext(ctx, &tasks, `
		SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	return tasks, total, err
}

// ActiveTaskIDs returns up to limit active task ids, oldest first.
func (r *Repository) ActiveTaskIDs(ctx context.Context, q sqlx.ExtContext, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := sqlx.SelectContext(ctx, q, &ids, `
		SELECT id FROM tasks WHERE is_active = TRUE ORDER BY created_at ASC, id ASC LIMIT $1
	`, limit)
	return ids, err
}

// CountApproved counts the user's approved submissions among taskIDs.
func (r *Repository) CountApproved(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, taskIDs []uuid.UUID) (int, error) {
	if len(taskIDs) == 0 {
		return 0, nil
	}
	ids := make([]string, len(taskIDs))
	for i, id := range taskIDs {
		ids[i] = id.String()
	}
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		SELECT COUNT(DISTINCT task_id) FROM task_submissions
		WHERE user_id = $1 AND status = 'approved' AND task_id = ANY($2::uuid[])
	`, userID, pq.Array(ids))
	return n, err
}

// CountAllApproved counts every approved submission of the user.
func (r *Repository) CountAllApproved(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n, `
		SELECT COUNT(*) FROM task_submissions WHERE user_id = $1 AND status = 'approved'
	`, userID)
	return n, err
}

func (r *Repository) CreateSubmission(ctx context.Context, s *Submission) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.Status = SubmissionPending
	err := r.db.QueryRowxContext(ctx, `
		INSERT INTO task_submissions (id, user_id, task_id, proof, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, s.ID, s.UserID, s.TaskID, s.Proof, s.Status).Scan(&s.CreatedAt)
	if database.IsUniqueViolation(err) {
		return ErrAlreadySubmitted
	}
	return err
}

func (r *Repository) GetSubmissionForUpdate(ctx context.Context, q sqlx.ExtContext, id uuid.UUID) (*Submission, error) {
	var s Submission
	err := sqlx.GetContext(ctx, q, &s, `
		SELECT `+submissionColumns+` FROM task_submissions s WHERE s.id = $1 FOR UPDATE
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Review moves a pending submission to status. It reports false when the submission
// was no longer pending.
func (r *Repository) Review(ctx context.Context, q sqlx.ExtContext, id uuid.UUID, status SubmissionStatus, reason string, reviewer uuid.UUID, at time.Time) (bool, error) {
	var rejection sql.NullString
	if status == SubmissionRejected && reason != "" {
		rejection = sql.NullString{String: reason, Valid: true}
	}
	res, err := q.ExecContext(ctx, `
		UPDATE task_submissions
		SET status = $2, rejection_reason = $3, reviewed_by = $4, reviewed_at = $5
		WHERE id = $1 AND status = 'pending'
	`, id, status, rejection, reviewer, at)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *Repository) ListUserSubmissions(ctx context.Context, userID uuid.UUID) ([]SubmissionWithTask, error) {
	var subs []SubmissionWithTask
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+submissionColumns+`, t.title AS task_title, t.reward_minor AS task_reward_minor, '' AS user_phone
		FROM task_submissions s
		JOIN tasks t ON t.id = s.task_id
		WHERE s.user_id = $1
		ORDER BY s.created_at DESC
	`, userID)
	return subs, err
}

func (r *Repository) ListPendingSubmissions(ctx context.Context, limit, offset int) ([]SubmissionWithTask, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM task_submissions WHERE status = 'pending'`); err != nil {
		return nil, 0, err
	}
	var subs []SubmissionWithTask
	err := r.db.SelectContext(ctx, &subs, `
		SELECT `+submissionColumns+`, t.title AS task_title, t.reward_minor AS task_reward_minor, u.phone_number AS user_phone
		FROM task_submissions s
		JOIN tasks t ON t.id = s.task_id
		JOIN users u ON u.id = s.user_id
		WHERE s.status = 'pending'
		ORDER BY s.created_at ASC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return subs, total, err
}
