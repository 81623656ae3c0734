package referral

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/quizbirr/quizbirr-api/internal/domain/user"
)

const (
	// BonusPoints and BonusMinor are paid to the referrer once per referred user.
	BonusPoints = 50
	BonusMinor  = 500

	// DailyPointsPerStreakDay grows the daily bonus up to DailyMaxPoints.
	DailyPointsPerStreakDay = 5
	DailyMaxPoints          = 50
	// DailyMinorPerPoint converts daily bonus points into money.
	DailyMinorPerPoint = 10
)

// BonusResult reports whether a referral bonus was paid.
type BonusResult struct {
	Awarded    bool      `json:"awarded"`
	Reason     string    `json:"reason,omitempty"`
	ReferrerID uuid.UUID `json:"referrer_id,omitempty"`
	Reference  string    `json:"reference,omitempty"`
}

// Reasons a bonus was not paid.
const (
	ReasonNoReferrer       = "no referrer"
	ReasonReferrerNotFound = "referrer not found"
	ReasonAlreadyAwarded   = "bonus already awarded"
)

// Stats summarises a user's referrals.
type Stats struct {
	ReferralCode       string          `json:"referral_code"`
	TotalReferrals     int             `json:"total_referrals"`
	ActiveReferrals    int             `json:"active_referrals"`
	TotalEarnings      decimal.Decimal `json:"total_earnings"`
	TotalEarningsMinor int64           `json:"total_earnings_minor"`
}

// ReferredPage is one page of referred users.
type ReferredPage struct {
	Referrals  []user.Referral `json:"referrals"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"total_pages"`
}

// DailyLogin is one claimed day.
type DailyLogin struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	LoginDate string    `db:"login_date"`
	Streak    int       `db:"streak"`
	CreatedAt time.Time `db:"created_at"`
}

// DailyBonusResult is the outcome of a daily bonus claim.
type DailyBonusResult struct {
	Streak        int             `json:"streak"`
	PointsAwarded int             `json:"points_awarded"`
	Amount        decimal.Decimal `json:"amount"`
	AmountMinor   int64           `json:"amount_minor"`
	NewPoints     int             `json:"new_points"`
	Reference     string          `json:"reference"`
}

// DailyPoints returns the bonus points for a streak.
func DailyPoints(streak int) int {
	return min(streak*DailyPointsPerStreakDay, DailyMaxPoints)
}

// BonusKey is the ledger idempotency key of a referral bonus.
func BonusKey(referrerID, referredUserID uuid.UUID) string {
	return fmt.Sprintf("referral-bonus:%s:%s", referrerID, referredUserID)
}

// DailyKey is the ledger idempotency key of a daily bonus.
func DailyKey(userID uuid.UUID, date string) string {
	return fmt.Sprintf("daily:%s:%s", userID, date)
}
