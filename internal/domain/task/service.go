package task

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/referral"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// ReferralAwarder pays the referral bonus for a referred user's first approval.
type ReferralAwarder interface {
	AwardBonus(ctx context.Context, referredUserID uuid.UUID) (*referral.BonusResult, error)
}

// Service manages tasks, submissions and the reward paid on approval.
type Service struct {
	uow       database.TxRunner
	repo      *Repository
	ledger    *ledger.Service
	txns      *transaction.Service
	users     user.Repository
	referrals ReferralAwarder
	events    *wallet.Events
	now       func() time.Time
}

// NewService creates task service
func NewService(uow database.TxRunner, repo *Repository, ledgerSvc *ledger.Service, txns *transaction.Service, users user.Repository, referrals ReferralAwarder) *Service {
	return &Service{
		uow:       uow,
		repo:      repo,
		ledger:    ledgerSvc,
		txns:      txns,
		users:     users,
		referrals: referrals,
		now:       time.Now,
	}
}

// SetEvents sets the realtime notifier (optional)
func (s *Service) SetEvents(events *wallet.Events) {
	s.events = events
}

func (s *Service) ListActive(ctx context.Context) ([]Task, error) {
	tasks, err := s.repo.ListActive(ctx)
	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, err
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Task, error) {
	t, err := s.repo.GetByID(ctx, s.repo.db, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// ListAll returns every task for admins.
func (s *Service) ListAll(ctx context.Context, page, limit int) ([]Task, int, error) {
	page, limit = transaction.NormalizePage(page, limit)
	return s.repo.ListAll(ctx, limit, (page-1)*limit)
}

// CreateTask adds an active task.
func (s *Service) CreateTask(ctx context.Context, t *Task) error {
	if t.RewardMinor < 0 {
		return ErrInvalidReward
	}
	t.IsActive = true
	return s.repo.Create(ctx, t)
}

// UpdateTask replaces the editable fields of a task.
func (s *Service) UpdateTask(ctx context.Context, t *Task) error {
	if t.RewardMinor < 0 {
		return ErrInvalidReward
	}
	return s.repo.Update(ctx, t)
}

// Submit records a pending submission. Each user may submit a task once.
func (s *Service) Submit(ctx context.Context, userID, taskID uuid.UUID, proof string) (*Submission, error) {
	t, err := s.repo.GetByID(ctx, s.repo.db, taskID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	if !t.IsActive {
		return nil, ErrTaskInactive
	}

	sub := &Submission{UserID: userID, TaskID: taskID, Proof: proof}
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

func (s *Service) UserSubmissions(ctx context.Context, userID uuid.UUID) ([]SubmissionWithTask, error) {
	subs, err := s.repo.ListUserSubmissions(ctx, userID)
	if subs == nil {
		subs = []SubmissionWithTask{}
	}
	return subs, err
}

func (s *Service) PendingSubmissions(ctx context.Context, page, limit int) ([]SubmissionWithTask, int, int, int, error) {
	page, limit = transaction.NormalizePage(page, limit)
	subs, total, err := s.repo.ListPendingSubmissions(ctx, limit, (page-1)*limit)
	if subs == nil {
		subs = []SubmissionWithTask{}
	}
	return subs, total, page, limit, err
}

// Review approves or rejects a pending submission. Approval awards PointsPerApproval,
// credits the task reward and records a bonus transaction in one unit of work. A user's
// first approval then triggers the referral bonus; its failure does not undo the review.
func (s *Service) Review(ctx context.Context, submissionID, adminID uuid.UUID, approved bool, reason string) (*ReviewResult, error) {
	if len(reason) > 500 {
		return nil, ErrRejectionReasonSize
	}

	var result *ReviewResult
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		sub, err := s.repo.GetSubmissionForUpdate(ctx, tx, submissionID)
		if err != nil {
			return err
		}
		if sub == nil {
			return ErrSubmissionNotFound
		}
		if sub.Status != SubmissionPending {
			return ErrAlreadyReviewed
		}

		status := SubmissionRejected
		if approved {
			status = SubmissionApproved
		}
		now := s.now()
		ok, err := s.repo.Review(ctx, tx, sub.ID, status, reason, adminID, now)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyReviewed
		}
		sub.Status = status
		sub.ReviewedBy = uuid.NullUUID{UUID: adminID, Valid: true}
		sub.ReviewedAt.Time, sub.ReviewedAt.Valid = now, true
		if status == SubmissionRejected && reason != "" {
			sub.RejectionReason.String, sub.RejectionReason.Valid = reason, true
		}

		result = &ReviewResult{Submission: sub}
		if !approved {
			return nil
		}

		t, err := s.repo.GetByID(ctx, tx, sub.TaskID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTaskNotFound
		}

		approvedCount, err := s.repo.CountAllApproved(ctx, tx, sub.UserID)
		if err != nil {
			return err
		}
		result.FirstApproval = approvedCount == 1

		newPoints, err := s.users.AddPoints(ctx, tx, sub.UserID, PointsPerApproval)
		if err != nil {
			return err
		}
		result.PointsAdded = PointsPerApproval
		result.NewPoints = newPoints
		result.RewardMinor = t.RewardMinor

		key := RewardKey(sub.ID)
		if t.RewardMinor > 0 {
			if _, err := s.ledger.CreditUser(ctx, tx, key, sub.UserID, t.RewardMinor, ledger.Meta{
				"kind":          "task_reward",
				"submission_id": sub.ID.String(),
				"task_id":       t.ID.String(),
			}); err != nil {
				return err
			}
		}

		subID, taskID := sub.ID, t.ID
		txn, err := s.txns.CreateCompleted(ctx, tx, transaction.CreateParams{
			UserID:      sub.UserID,
			Type:        transaction.TypeBonus,
			AmountMinor: t.RewardMinor,
			Prefix:      transaction.PrefixTask,
			Description: fmt.Sprintf("Task completed: %s", t.Title),
			Metadata: transaction.Metadata{Reward: &transaction.RewardMeta{
				Source:         transaction.SourceTask,
				IdempotencyKey: key,
				PointsAwarded:  PointsPerApproval,
				SubmissionID:   &subID,
				TaskID:         &taskID,
			}},
		})
		if err != nil {
			return err
		}
		result.Reference = txn.Reference
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("submission_id", submissionID.String()).
		Str("admin_id", adminID.String()).
		Str("status", string(result.Submission.Status)).
		Int64("reward_minor", result.RewardMinor).
		Msg("task submission reviewed")

	if !approved {
		return result, nil
	}
	s.events.WalletUpdated(ctx, result.Submission.UserID, result.Reference)

	if result.FirstApproval && s.referrals != nil {
		bonus, err := s.referrals.AwardBonus(ctx, result.Submission.UserID)
		if err != nil {
			log.Error().Err(err).Str("user_id", result.Submission.UserID.String()).Msg("referral bonus trigger failed")
		} else if bonus.Awarded {
			log.Info().Str("user_id", result.Submission.UserID.String()).Msg("referral bonus paid on first approval")
		}
	}
	return result, nil
}
