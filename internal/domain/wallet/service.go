package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
)

// TaskGate answers the task questions withdrawal gating needs.
type TaskGate interface {
	ActiveTaskIDs(ctx context.Context, q sqlx.ExtContext, limit int) ([]uuid.UUID, error)
	CountApproved(ctx context.Context, q sqlx.ExtContext, userID uuid.UUID, taskIDs []uuid.UUID) (int, error)
}

// Service exposes balances, history and the withdrawal lifecycle.
type Service struct {
	db     *sqlx.DB
	uow    database.TxRunner
	ledger *ledger.Service
	txns   *transaction.Service
	users  user.Repository
	tasks  TaskGate
	events *Events
}

// NewService creates wallet service
func NewService(db *sqlx.DB, uow database.TxRunner, ledgerSvc *ledger.Service, txns *transaction.Service, users user.Repository, tasks TaskGate) *Service {
	return &Service{
		db:     db,
		uow:    uow,
		ledger: ledgerSvc,
		txns:   txns,
		users:  users,
		tasks:  tasks,
	}
}

// SetEvents sets the realtime notifier (optional)
func (s *Service) SetEvents(events *Events) {
	s.events = events
}

// GetBalance returns the ledger-derived balance and the user's points.
func (s *Service) GetBalance(ctx context.Context, userID uuid.UUID) (*Balance, error) {
	u, err := s.users.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}

	minor, err := s.ledger.GetUserBalanceMinor(ctx, userID)
	if err != nil {
		return nil, err
	}
	b := NewBalance(minor, u.Points)
	return &b, nil
}

// History returns the user's transactions, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, limit int) (*transaction.Page, error) {
	return s.txns.History(ctx, userID, page, limit)
}

// InitiateWithdrawal records a pending withdrawal gated on the currently active tasks.
// No money moves until an admin approves it.
func (s *Service) InitiateWithdrawal(ctx context.Context, req WithdrawalRequest) (*transaction.Transaction, error) {
	if req.AmountMinor <= 0 {
		return nil, ErrInvalidAmount
	}

	var created *transaction.Transaction
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		balance, err := s.ledger.UserBalanceMinor(ctx, tx, req.UserID)
		if err != nil {
			return err
		}
		if req.AmountMinor > balance {
			return ErrInsufficientBalance
		}

		taskIDs, err := s.tasks.ActiveTaskIDs(ctx, tx, WithdrawalTaskCount)
		if err != nil {
			return err
		}
		if len(taskIDs) == 0 {
			return ErrNoGatingTasks
		}

		created, err = s.txns.Create(ctx, tx, transaction.CreateParams{
			UserID:      req.UserID,
			Type:        transaction.TypeWithdrawal,
			AmountMinor: req.AmountMinor,
			Prefix:      transaction.PrefixWithdrawal,
			Description: "Withdrawal request",
			Metadata: transaction.Metadata{Withdrawal: &transaction.WithdrawalMeta{
				TasksRequired: taskIDs,
				Destination:   req.Destination,
			}},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", req.UserID.String()).
		Str("reference", created.Reference).
		Int64("amount_minor", req.AmountMinor).
		Int("tasks_required", len(created.Metadata.Withdrawal.TasksRequired)).
		Msg("withdrawal requested")
	return created, nil
}

// ProcessWithdrawal applies an admin decision. Rejection only cancels the transaction.
// Approval requires every gating task approved and enough balance under the wallet lock,
// then moves the amount from the user wallet to withdrawals_outgoing.
func (s *Service) ProcessWithdrawal(ctx context.Context, d WithdrawalDecision) (*transaction.Transaction, error) {
	var result *transaction.Transaction
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		t, err := s.txns.Lock(ctx, tx, d.TransactionID)
		if err != nil {
			return err
		}
		if t.Type != transaction.TypeWithdrawal {
			return ErrNotWithdrawal
		}
		if !t.IsPending() {
			result = t
			return fmt.Errorf("%w: %s is %s", transaction.ErrAlreadyProcessed, t.Reference, t.Status)
		}

		adminID := d.AdminID
		if !d.Approved {
			result, err = s.txns.MarkCancelled(ctx, tx, t.ID, func(m *transaction.Metadata) {
				ensureWithdrawalMeta(m)
				m.Withdrawal.ProcessedBy = &adminID
				m.Withdrawal.RejectionReason = d.Reason
			})
			return err
		}

		var required []uuid.UUID
		if t.Metadata.Withdrawal != nil {
			required = t.Metadata.Withdrawal.TasksRequired
		}
		approved, err := s.tasks.CountApproved(ctx, tx, t.UserID, required)
		if err != nil {
			return err
		}
		if approved < len(required) {
			return fmt.Errorf("%w: %d of %d", ErrTasksNotApproved, approved, len(required))
		}

		if _, err := s.ledger.LockUserWallet(ctx, tx, t.UserID); err != nil {
			return err
		}
		balance, err := s.ledger.UserBalanceMinor(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		if balance < t.AmountMinor {
			return ErrInsufficientBalance
		}

		result, err = s.txns.MarkCompleted(ctx, tx, t.ID, func(m *transaction.Metadata) {
			ensureWithdrawalMeta(m)
			m.Withdrawal.ProcessedBy = &adminID
		})
		if err != nil {
			return err
		}

		_, err = s.ledger.DebitUser(ctx, tx, WithdrawalKey(t.Reference), t.UserID,
			ledger.AccountWithdrawalsOutgoing, t.AmountMinor, ledger.Meta{
				"kind":           "withdrawal",
				"transaction_id": t.ID.String(),
				"reference":      t.Reference,
			})
		return err
	})
	if err != nil {
		if errors.Is(err, transaction.ErrAlreadyProcessed) {
			return result, err
		}
		log.Warn().Err(err).Str("transaction_id", d.TransactionID.String()).Msg("withdrawal processing failed")
		return nil, err
	}

	if result.Status == transaction.StatusCompleted {
		s.events.WalletUpdated(ctx, result.UserID, result.Reference)
	}
	log.Info().
		Str("reference", result.Reference).
		Str("admin_id", d.AdminID.String()).
		Bool("approved", d.Approved).
		Msg("withdrawal processed")
	return result, nil
}

// WithdrawalKey is the ledger idempotency key for an approved withdrawal.
func WithdrawalKey(reference string) string {
	return "withdrawal:" + reference
}

func ensureWithdrawalMeta(m *transaction.Metadata) {
	if m.Withdrawal == nil {
		m.Withdrawal = &transaction.WithdrawalMeta{}
	}
}

// ListTransactions is the admin view over every user's transactions.
func (s *Service) ListTransactions(ctx context.Context, f transaction.Filter) (*transaction.Page, error) {
	return s.txns.List(ctx, f)
}
