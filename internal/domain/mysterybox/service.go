package mysterybox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"

	"github.com/quizbirr/quizbirr-api/internal/domain/ledger"
	"github.com/quizbirr/quizbirr-api/internal/domain/transaction"
	"github.com/quizbirr/quizbirr-api/internal/domain/user"
	"github.com/quizbirr/quizbirr-api/internal/domain/wallet"
	"github.com/quizbirr/quizbirr-api/internal/pkg/clock"
	"github.com/quizbirr/quizbirr-api/internal/pkg/database"
	"github.com/quizbirr/quizbirr-api/internal/pkg/money"
)

// Service opens weekly mystery boxes.
type Service struct {
	db     *sqlx.DB
	uow    database.TxRunner
	repo   *Repository
	ledger *ledger.Service
	txns   *transaction.Service
	users  user.Repository
	clock  clock.Clock
	loc    *time.Location
	tiers  []Tier
	roll   func() float64
	events *wallet.Events
}

// NewService creates mystery box service. Weeks start on Monday in loc.
func NewService(db *sqlx.DB, uow database.TxRunner, repo *Repository, ledgerSvc *ledger.Service, txns *transaction.Service, users user.Repository, clk clock.Clock, loc *time.Location) *Service {
	if clk == nil {
		clk = clock.RealClock{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		db:     db,
		uow:    uow,
		repo:   repo,
		ledger: ledgerSvc,
		txns:   txns,
		users:  users,
		clock:  clk,
		loc:    loc,
		tiers:  DefaultTiers,
		roll:   rand.Float64,
	}
}

// SetEvents sets the realtime notifier (optional)
func (s *Service) SetEvents(events *wallet.Events) {
	s.events = events
}

func (s *Service) weekStart() time.Time {
	return clock.WeekStart(s.clock.Now().In(s.loc))
}

// CheckEligibility reports whether userID can open a box this week.
func (s *Service) CheckEligibility(ctx context.Context, userID uuid.UUID) (*Eligibility, error) {
	u, err := s.users.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}

	week := s.weekStart()
	opened, err := s.repo.OpenedInWeek(ctx, s.db, userID, week)
	if err != nil {
		return nil, err
	}

	minPoints := MinPoints(s.tiers)
	e := &Eligibility{
		Eligible:          !opened && u.Points >= minPoints,
		CurrentPoints:     u.Points,
		MinPointsRequired: minPoints,
		AlreadyOpened:     opened,
	}
	if opened {
		next := week.AddDate(0, 0, 7)
		e.NextEligibleDate = &next
	}
	return e, nil
}

// Open spends pointsToSpend on this week's box and credits the drawn reward.
func (s *Service) Open(ctx context.Context, userID uuid.UUID, pointsToSpend int) (*OpenResult, error) {
	if pointsToSpend < MinPoints(s.tiers) {
		return nil, ErrBelowMinimum
	}
	tier, ok := Select(Affordable(s.tiers, pointsToSpend), s.roll())
	if !ok {
		return nil, ErrBelowMinimum
	}

	week := s.weekStart()
	var result *OpenResult
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		result = nil

		u, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return user.ErrUserNotFound
		}
		opened, err := s.repo.OpenedInWeek(ctx, tx, userID, week)
		if err != nil {
			return err
		}
		if opened {
			return ErrAlreadyOpened
		}
		if pointsToSpend > u.Points {
			return ErrInsufficientPoints
		}

		box := &Box{
			ID:          uuid.New(),
			UserID:      userID,
			WeekStart:   week,
			RewardType:  tier.Type,
			RewardMinor: tier.AmountMinor,
			PointsSpent: pointsToSpend,
		}
		if err := s.repo.Insert(ctx, tx, box); err != nil {
			return err
		}
		newPoints, err := s.users.AddPoints(ctx, tx, userID, -pointsToSpend)
		if err != nil {
			return err
		}

		key := LedgerKey(box.ID)
		if _, err := s.ledger.CreditUser(ctx, tx, key, userID, tier.AmountMinor, ledger.Meta{
			"kind":        "mystery_box",
			"reward_tier": tier.Type,
		}); err != nil {
			return err
		}
		boxID := box.ID
		t, err := s.txns.CreateCompleted(ctx, tx, transaction.CreateParams{
			UserID:      userID,
			Type:        transaction.TypeBonus,
			AmountMinor: tier.AmountMinor,
			Prefix:      transaction.PrefixMystery,
			Description: fmt.Sprintf("Mystery box reward (%s)", tier.Type),
			Metadata: transaction.Metadata{Reward: &transaction.RewardMeta{
				Source:         transaction.SourceMysteryBox,
				IdempotencyKey: key,
				PointsSpent:    pointsToSpend,
				MysteryBoxID:   &boxID,
				RewardTier:     tier.Type,
			}},
		})
		if err != nil {
			return err
		}

		result = &OpenResult{
			BoxID:            box.ID,
			RewardType:       tier.Type,
			Amount:           money.ToMajor(tier.AmountMinor),
			AmountMinor:      tier.AmountMinor,
			PointsSpent:      pointsToSpend,
			NewPoints:        newPoints,
			Reference:        t.Reference,
			NextEligibleDate: week.AddDate(0, 0, 7),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.WalletUpdated(ctx, userID, result.Reference)
	log.Info().
		Str("user_id", userID.String()).
		Str("reward_tier", result.RewardType).
		Int("points_spent", pointsToSpend).
		Str("reference", result.Reference).
		Msg("mystery box opened")
	return result, nil
}

// History returns the user's opened boxes, newest first.
func (s *Service) History(ctx context.Context, userID uuid.UUID, page, limit int) ([]Box, int, int, int, error) {
	page, limit = transaction.NormalizePage(page, limit)
	boxes, total, err := s.repo.History(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if boxes == nil {
		boxes = []Box{}
	}
	return boxes, total, page, limit, nil
}

// Stats summarises the user's boxes by reward tier.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	st, err := s.repo.Stats(ctx, userID)
	if err != nil {
		return nil, err
	}
	st.TotalRewardsEarned = money.ToMajor(st.TotalRewardsMinor)
	if st.RewardBreakdown == nil {
		st.RewardBreakdown = []TierStat{}
	}
	for i := range st.RewardBreakdown {
		st.RewardBreakdown[i].TotalAmount = money.ToMajor(st.RewardBreakdown[i].TotalMinor)
	}
	return st, nil
}

// Activity lists every opened box for admins with masked phone numbers.
func (s *Service) Activity(ctx context.Context, page, limit int) ([]AdminBox, int, int, int, error) {
	page, limit = transaction.NormalizePage(page, limit)
	boxes, total, err := s.repo.ListAll(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if boxes == nil {
		boxes = []AdminBox{}
	}
	for i := range boxes {
		boxes[i].UserPhone = user.MaskPhone(boxes[i].UserPhone)
	}
	return boxes, total, page, limit, nil
}
