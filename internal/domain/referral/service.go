package referral

import (
	"context"
	"fmt"
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

const dateLayout = "2006-01-02"

// Service handles referral codes, referral bonuses and the daily login bonus.
type Service struct {
	db     *sqlx.DB
	uow    database.TxRunner
	repo   *Repository
	ledger *ledger.Service
	txns   *transaction.Service
	users  user.Repository
	clock  clock.Clock
	loc    *time.Location
	events *wallet.Events
}

// NewService creates referral service. Calendar days are evaluated in loc.
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
	}
}

// SetEvents sets the realtime notifier (optional)
func (s *Service) SetEvents(events *wallet.Events) {
	s.events = events
}

// ApplyCode links userID to the owner of code. A user can be referred once.
func (s *Service) ApplyCode(ctx context.Context, userID uuid.UUID, code string) error {
	return s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		u, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return user.ErrUserNotFound
		}
		if u.HasReferrer() {
			return ErrAlreadyReferred
		}

		referrer, err := s.users.GetByReferralCode(ctx, tx, code)
		if err != nil {
			return err
		}
		if referrer == nil {
			return ErrInvalidCode
		}
		if referrer.ID == userID {
			return ErrSelfReferral
		}

		ok, err := s.users.SetReferredBy(ctx, tx, userID, code)
		if err != nil {
			return err
		}
		if !ok {
			return ErrAlreadyReferred
		}
		return nil
	})
}

// AwardBonus pays the referrer of referredUserID once. Repeated calls report
// ReasonAlreadyAwarded without touching balances.
func (s *Service) AwardBonus(ctx context.Context, referredUserID uuid.UUID) (*BonusResult, error) {
	referred, err := s.users.GetByID(ctx, s.db, referredUserID)
	if err != nil {
		return nil, err
	}
	if referred == nil {
		return nil, user.ErrUserNotFound
	}
	if !referred.HasReferrer() {
		return &BonusResult{Reason: ReasonNoReferrer}, nil
	}

	referrer, err := s.users.GetByReferralCode(ctx, s.db, referred.ReferredBy.String)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		return &BonusResult{Reason: ReasonReferrerNotFound}, nil
	}

	key := BonusKey(referrer.ID, referredUserID)
	exists, err := s.ledger.EntryExists(ctx, s.db, key)
	if err != nil {
		return nil, err
	}
	if exists {
		return &BonusResult{Reason: ReasonAlreadyAwarded, ReferrerID: referrer.ID}, nil
	}

	result := &BonusResult{ReferrerID: referrer.ID}
	err = s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		result.Awarded, result.Reason, result.Reference = false, "", ""

		// The referrer row lock orders concurrent awards; the key check after it is authoritative.
		if _, err := s.users.GetForUpdate(ctx, tx, referrer.ID); err != nil {
			return err
		}
		exists, err := s.ledger.EntryExists(ctx, tx, key)
		if err != nil {
			return err
		}
		if exists {
			result.Reason = ReasonAlreadyAwarded
			return nil
		}

		if _, err := s.users.AddPoints(ctx, tx, referrer.ID, BonusPoints); err != nil {
			return err
		}
		if _, err := s.ledger.CreditUser(ctx, tx, key, referrer.ID, BonusMinor, ledger.Meta{
			"kind":             "referral_bonus",
			"referred_user_id": referredUserID.String(),
		}); err != nil {
			return err
		}

		referredID := referredUserID
		t, err := s.txns.CreateCompleted(ctx, tx, transaction.CreateParams{
			UserID:      referrer.ID,
			Type:        transaction.TypeReferral,
			AmountMinor: BonusMinor,
			Prefix:      transaction.PrefixReferral,
			Description: "Referral bonus",
			Metadata: transaction.Metadata{Reward: &transaction.RewardMeta{
				Source:         transaction.SourceReferral,
				IdempotencyKey: key,
				PointsAwarded:  BonusPoints,
				ReferredUserID: &referredID,
			}},
		})
		if err != nil {
			return err
		}
		result.Awarded = true
		result.Reference = t.Reference
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Awarded {
		s.events.WalletUpdated(ctx, referrer.ID, result.Reference)
		log.Info().
			Str("referrer_id", referrer.ID.String()).
			Str("referred_user_id", referredUserID.String()).
			Str("reference", result.Reference).
			Msg("referral bonus awarded")
	}
	return result, nil
}

// Stats returns the user's referral summary.
func (s *Service) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	u, err := s.users.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}

	total, active, err := s.users.CountReferrals(ctx, u.ReferralCode)
	if err != nil {
		return nil, err
	}
	earned, err := s.txns.SumCompleted(ctx, userID, transaction.TypeReferral)
	if err != nil {
		return nil, err
	}

	return &Stats{
		ReferralCode:       u.ReferralCode,
		TotalReferrals:     total,
		ActiveReferrals:    active,
		TotalEarnings:      money.ToMajor(earned),
		TotalEarningsMinor: earned,
	}, nil
}

// ReferredUsers lists the users referred by userID with masked phone numbers.
func (s *Service) ReferredUsers(ctx context.Context, userID uuid.UUID, page, limit int) (*ReferredPage, error) {
	u, err := s.users.GetByID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, user.ErrUserNotFound
	}

	page, limit = transaction.NormalizePage(page, limit)
	total, _, err := s.users.CountReferrals(ctx, u.ReferralCode)
	if err != nil {
		return nil, err
	}
	refs, err := s.users.ListReferrals(ctx, u.ReferralCode, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []user.Referral{}
	}

	return &ReferredPage{
		Referrals:  refs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: transaction.TotalPages(total, limit),
	}, nil
}

// ClaimDailyBonus awards today's login bonus. The streak grows when yesterday was claimed.
func (s *Service) ClaimDailyBonus(ctx context.Context, userID uuid.UUID) (*DailyBonusResult, error) {
	today := clock.DayStart(s.clock.Now().In(s.loc))
	todayStr := today.Format(dateLayout)
	yesterdayStr := today.AddDate(0, 0, -1).Format(dateLayout)

	var result *DailyBonusResult
	err := s.uow.WithinTx(ctx, func(tx *sqlx.Tx) error {
		u, err := s.users.GetForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if u == nil {
			return user.ErrUserNotFound
		}

		claimed, err := s.repo.GetDailyLogin(ctx, tx, userID, todayStr)
		if err != nil {
			return err
		}
		if claimed != nil {
			return ErrDailyBonusClaimed
		}

		streak := 1
		prev, err := s.repo.GetDailyLogin(ctx, tx, userID, yesterdayStr)
		if err != nil {
			return err
		}
		if prev != nil {
			streak = prev.Streak + 1
		}

		points := DailyPoints(streak)
		amount := int64(points) * DailyMinorPerPoint
		key := DailyKey(userID, todayStr)

		if err := s.repo.InsertDailyLogin(ctx, tx, &DailyLogin{
			UserID:    userID,
			LoginDate: todayStr,
			Streak:    streak,
		}); err != nil {
			return err
		}
		newPoints, err := s.users.AddPoints(ctx, tx, userID, points)
		if err != nil {
			return err
		}
		if _, err := s.ledger.CreditUser(ctx, tx, key, userID, amount, ledger.Meta{
			"kind":   "daily_bonus",
			"streak": streak,
		}); err != nil {
			return err
		}
		t, err := s.txns.CreateCompleted(ctx, tx, transaction.CreateParams{
			UserID:      userID,
			Type:        transaction.TypeBonus,
			AmountMinor: amount,
			Prefix:      transaction.PrefixDaily,
			Description: fmt.Sprintf("Daily login bonus (%d day streak)", streak),
			Metadata: transaction.Metadata{Reward: &transaction.RewardMeta{
				Source:         transaction.SourceDailyLogin,
				IdempotencyKey: key,
				PointsAwarded:  points,
				Streak:         streak,
			}},
		})
		if err != nil {
			return err
		}

		result = &DailyBonusResult{
			Streak:        streak,
			PointsAwarded: points,
			Amount:        money.ToMajor(amount),
			AmountMinor:   amount,
			NewPoints:     newPoints,
			Reference:     t.Reference,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.events.WalletUpdated(ctx, userID, result.Reference)
	return result, nil
}
