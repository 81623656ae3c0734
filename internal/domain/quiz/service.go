package quiz

import (
	"context"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

const (
	// DefaultWeightMinor is moved per answer when neither the quiz nor config set one.
	DefaultWeightMinor = 100
	randomPoolSize     = 10
)

// Service settles quiz answers.
type Service struct {
	uow         database.TxRunner
	repo        *Repository
	ledger      *ledger.Service
	txns        *transaction.Service
	users       user.Repository
	events      *wallet.Events
	weightMinor int64
	pick        func(n int) int
}

// NewService creates quiz service. weightMinor is the default amount moved per answer.
func NewService(uow database.TxRunner, repo *Repository, ledgerSvc *ledger.Service, txns *transaction.Service, users user.Repository, weightMinor int64) *Service {
	if weightMinor <= 0 {
		weightMinor = DefaultWeightMinor
	}
	return &Service{
		uow:         uow,
		repo:        repo,
		ledger:      ledgerSvc,
		txns:        txns,
		users:       users,
		weightMinor: weightMinor,
		pick:        rand.Intn,
	}
}

// SetEvents sets the realtime notifier (optional)
func (s *Service) SetEvents(events *wallet.Events) {
	s.events = events
}

// RandomQuiz returns an active quiz the user has not answered, without its answer.
func (s *Service) RandomQuiz(ctx context.Context, userID uuid.UUID) (*PublicQuiz, error) {
	pool, err := s.repo.Unanswered(ctx, userID, randomPoolSize)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return nil, ErrNoQuizAvailable
	}
	q := pool[s.pick(len(pool))].Public()
	return &q, nil
}

// SubmitAnswer settles the user's first answer to quizID. The attempt, the points change,
// the quiz transaction and the ledger posting commit together. A correct answer moves the
// quiz weight from platform to user; a wrong one moves it back.
func (s *Service) SubmitAnswer(ctx context.Context, userID, quizID uuid.UUID, answer bool) (*AnswerResult, error) {
	var result *AnswerResult
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		q, err := s.repo.GetByID(ctx, tx, quizID)
		if err != nil {
			return err
		}
		if q == nil {
			return ErrQuizNotFound
		}
		if !q.IsActive {
			return ErrQuizInactive
		}

		answered, err := s.repo.AttemptExists(ctx, tx, userID, quizID)
		if err != nil {
			return err
		}
		if answered {
			return ErrAlreadyAnswered
		}

		correct := q.Answer == answer
		delta := PointsDelta(correct, q.Points)
		weight := q.Weight(s.weightMinor)

		attempt := &Attempt{
			UserID:       userID,
			QuizID:       quizID,
			UserAnswer:   answer,
			IsCorrect:    correct,
			PointsEarned: delta,
		}
		if err := s.repo.InsertAttempt(ctx, tx, attempt); err != nil {
			return err
		}

		newPoints, err := s.users.AddPoints(ctx, tx, userID, delta)
		if err != nil {
			return err
		}

		key := SettlementKey(correct, attempt.ID)
		meta := ledger.Meta{
			"kind":       "quiz",
			"quiz_id":    quizID.String(),
			"attempt_id": attempt.ID.String(),
		}
		signed := weight
		if correct {
			meta["outcome"] = "correct"
			_, err = s.ledger.CreditUser(ctx, tx, key, userID, weight, meta)
		} else {
			meta["outcome"] = "wrong"
			signed = -weight
			_, err = s.ledger.DebitUser(ctx, tx, key, userID, ledger.AccountPlatformLiability, weight, meta)
		}
		if err != nil {
			return err
		}

		description := "Quiz incorrect answer"
		if correct {
			description = "Quiz correct answer"
		}
		t, err := s.txns.CreateCompleted(ctx, tx, transaction.CreateParams{
			UserID:      userID,
			Type:        transaction.TypeQuiz,
			AmountMinor: signed,
			Prefix:      transaction.PrefixQuiz,
			Description: description,
			Metadata: transaction.Metadata{Quiz: &transaction.QuizMeta{
				AttemptID: attempt.ID,
				QuizID:    quizID,
				IsCorrect: correct,
			}},
		})
		if err != nil {
			return err
		}

		result = &AnswerResult{
			IsCorrect:          correct,
			PointsEarned:       delta,
			BalanceChange:      money.ToMajor(signed),
			BalanceChangeMinor: signed,
			NewPoints:          newPoints,
			Reference:          t.Reference,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("user_id", userID.String()).
		Str("quiz_id", quizID.String()).
		Bool("correct", result.IsCorrect).
		Int64("amount_minor", result.BalanceChangeMinor).
		Msg("quiz answer settled")
	s.events.WalletUpdated(ctx, userID, result.Reference)
	return result, nil
}

// Stats returns the user's quiz statistics.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	st, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.IncorrectAttempts = st.TotalAttempts - st.CorrectAttempts
	if st.TotalAttempts > 0 {
		st.Accuracy = float64(st.CorrectAttempts) / float64(st.TotalAttempts) * 100
	}
	return st, nil
}

// Create adds a quiz.
func (s *Service) Create(ctx context.Context, q *Quiz) error {
	if q.Points < 0 {
		return ErrInvalidPoints
	}
	if q.Difficulty == "" {
		q.Difficulty = "easy"
	}
	return s.repo.Create(ctx, q)
}

// Update replaces a quiz's editable fields.
func (s *Service) Update(ctx context.Context, q *Quiz) error {
	if q.Points < 0 {
		return ErrInvalidPoints
	}
	return s.repo.Update(ctx, q)
}

// List returns a page of all quizzes for admins.
func (s *Service) List(ctx context.Context, page, limit int) ([]Quiz, int, int, int, error) {
	page, limit = transaction.NormalizePage(page, limit)
	quizzes, total, err := s.repo.List(ctx, limit, (page-1)*limit)
	if quizzes == nil {
		quizzes = []Quiz{}
	}
	return quizzes, total, page, limit, err
}
