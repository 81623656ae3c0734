package transaction

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PaymentMethod identifies how a deposit is funded.
type PaymentMethod string

const (
	MethodTelebirr PaymentMethod = "telebirr"
	MethodChapa    PaymentMethod = "chapa"
	MethodBank     PaymentMethod = "bank"
)

// ProviderMethods settle through a provider webhook.
var ProviderMethods = []PaymentMethod{MethodTelebirr, MethodChapa}

// Metadata is the typed metadata column. Exactly one section is set and it must match
// the transaction type:
//
//	deposit    -> Deposit
//	withdrawal -> Withdrawal
//	quiz       -> Quiz
//	bonus      -> Reward
//	referral   -> Reward
type Metadata struct {
	Deposit    *DepositMeta    `json:"deposit,omitempty"`
	Withdrawal *WithdrawalMeta `json:"withdrawal,omitempty"`
	Quiz       *QuizMeta       `json:"quiz,omitempty"`
	Reward     *RewardMeta     `json:"reward,omitempty"`
}

// DepositMeta carries provider and receipt details.
type DepositMeta struct {
	Method          PaymentMethod   `json:"method"`
	CheckoutURL     string          `json:"checkout_url,omitempty"`
	ProviderRef     string          `json:"provider_ref,omitempty"`
	ProviderStatus  string          `json:"provider_status,omitempty"`
	ProviderPayload json.RawMessage `json:"provider_payload,omitempty"`
	ReceiptPath     string          `json:"receipt_path,omitempty"`
	ConfirmedBy     *uuid.UUID      `json:"confirmed_by,omitempty"`
	FailureReason   string          `json:"failure_reason,omitempty"`
}

// WithdrawalMeta carries the gating task set and the admin decision.
type WithdrawalMeta struct {
	TasksRequired   []uuid.UUID `json:"tasks_required"`
	Destination     string      `json:"destination,omitempty"`
	ProcessedBy     *uuid.UUID  `json:"processed_by,omitempty"`
	RejectionReason string      `json:"rejection_reason,omitempty"`
}

// QuizMeta links a quiz transaction to its attempt.
type QuizMeta struct {
	AttemptID uuid.UUID `json:"attempt_id"`
	QuizID    uuid.UUID `json:"quiz_id"`
	IsCorrect bool      `json:"is_correct"`
}

// RewardSource names what produced a bonus or referral payout.
type RewardSource string

const (
	SourceMysteryBox RewardSource = "mystery_box"
	SourceTask       RewardSource = "task"
	SourceReferral   RewardSource = "referral"
	SourceDailyLogin RewardSource = "daily_login"
)

// RewardMeta describes bonus and referral payouts.
type RewardMeta struct {
	Source         RewardSource `json:"source"`
	IdempotencyKey string       `json:"idempotency_key"`
	PointsAwarded  int          `json:"points_awarded,omitempty"`
	PointsSpent    int          `json:"points_spent,omitempty"`
	MysteryBoxID   *uuid.UUID   `json:"mystery_box_id,omitempty"`
	RewardTier     string       `json:"reward_tier,omitempty"`
	SubmissionID   *uuid.UUID   `json:"submission_id,omitempty"`
	TaskID         *uuid.UUID   `json:"task_id,omitempty"`
	ReferredUserID *uuid.UUID   `json:"referred_user_id,omitempty"`
	Streak         int          `json:"streak,omitempty"`
}

// Patch mutates metadata during a transition.
type Patch func(*Metadata)

var errMetadataShape = errors.New("metadata does not match transaction type")

// CheckShape verifies that only the section belonging to t is set.
func (m Metadata) CheckShape(t Type) error {
	sections := 0
	for _, set := range []bool{m.Deposit != nil, m.Withdrawal != nil, m.Quiz != nil, m.Reward != nil} {
		if set {
			sections++
		}
	}
	if sections > 1 {
		return fmt.Errorf("%w: %d sections set", errMetadataShape, sections)
	}

	ok := true
	switch t {
	case TypeDeposit:
		ok = m.Withdrawal == nil && m.Quiz == nil && m.Reward == nil
	case TypeWithdrawal:
		ok = m.Deposit == nil && m.Quiz == nil && m.Reward == nil
	case TypeQuiz:
		ok = m.Deposit == nil && m.Withdrawal == nil && m.Reward == nil
	case TypeBonus, TypeReferral:
		ok = m.Deposit == nil && m.Withdrawal == nil && m.Quiz == nil
	default:
		return ErrInvalidType
	}
	if !ok {
		return fmt.Errorf("%w: %s", errMetadataShape, t)
	}
	return nil
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("transaction: unsupported metadata type %T", src)
	}
	var out Metadata
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return err
		}
	}
	*m = out
	return nil
}
