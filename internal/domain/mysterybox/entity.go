package mysterybox

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Box is an opened mystery box.
type Box struct {
	ID          uuid.UUID `db:"id" json:"id"`
	UserID      uuid.UUID `db:"user_id" json:"user_id"`
	WeekStart   time.Time `db:"week_start" json:"week_start"`
	RewardType  string    `db:"reward_type" json:"reward_type"`
	RewardMinor int64     `db:"reward_minor" json:"reward_minor"`
	PointsSpent int       `db:"points_spent" json:"points_spent"`
	OpenedAt    time.Time `db:"opened_at" json:"opened_at"`
}

// AdminBox is a box with its owner's masked phone number.
type AdminBox struct {
	Box
	UserPhone string `db:"user_phone" json:"user_phone"`
}

// Eligibility tells the user whether a box can be opened now.
type Eligibility struct {
	Eligible          bool       `json:"eligible"`
	CurrentPoints     int        `json:"current_points"`
	MinPointsRequired int        `json:"min_points_required"`
	AlreadyOpened     bool       `json:"already_opened"`
	NextEligibleDate  *time.Time `json:"next_eligible_date"`
}

// OpenResult is the reward of an opened box.
type OpenResult struct {
	BoxID            uuid.UUID       `json:"box_id"`
	RewardType       string          `json:"reward_type"`
	Amount           decimal.Decimal `json:"amount"`
	AmountMinor      int64           `json:"amount_minor"`
	PointsSpent      int             `json:"points_spent"`
	NewPoints        int             `json:"new_points"`
	Reference        string          `json:"reference"`
	NextEligibleDate time.Time       `json:"next_eligible_date"`
}

// TierStat aggregates the boxes of one reward type.
type TierStat struct {
	Type        string          `db:"reward_type" json:"type"`
	Count       int             `db:"count" json:"count"`
	TotalMinor  int64           `db:"total_minor" json:"total_amount_minor"`
	TotalAmount decimal.Decimal `db:"-" json:"total_amount"`
}

// Stats summarises a user's boxes.
type Stats struct {
	TotalBoxesOpened   int             `db:"total_boxes" json:"total_boxes_opened"`
	TotalPointsSpent   int             `db:"total_points" json:"total_points_spent"`
	TotalRewardsMinor  int64           `db:"total_minor" json:"total_rewards_minor"`
	TotalRewardsEarned decimal.Decimal `db:"-" json:"total_rewards_earned"`
	RewardBreakdown    []TierStat      `db:"-" json:"reward_breakdown"`
}

// LedgerKey is the idempotency key of a box payout.
func LedgerKey(boxID uuid.UUID) string {
	return "mysterybox:" + boxID.String()
}
