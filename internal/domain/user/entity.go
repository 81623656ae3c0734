package user

import (
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the system
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User holds the account fields the money core reads and mutates.
// Balance is never stored here; it is derived from the ledger.
type User struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	PhoneNumber  string         `db:"phone_number" json:"phone_number"`
	Role         Role           `db:"role" json:"role"`
	Points       int            `db:"points" json:"points"`
	ReferralCode string         `db:"referral_code" json:"referral_code"`
	ReferredBy   sql.NullString `db:"referred_by" json:"-"`
	IsActive     bool           `db:"is_active" json:"is_active"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// IsAdmin returns true if user is an admin
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// HasReferrer reports whether the user signed up with a referral code.
func (u *User) HasReferrer() bool {
	return u.ReferredBy.Valid && u.ReferredBy.String != ""
}

// Referral is a referred user as shown to the referrer.
type Referral struct {
	ID          uuid.UUID `db:"id" json:"id"`
	PhoneNumber string    `db:"phone_number" json:"phone_number"`
	JoinedAt    time.Time `db:"created_at" json:"joined_at"`
	IsActive    bool      `db:"is_active" json:"is_active"`
}

// MaskPhone keeps the last four digits and stars the rest.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
