package referral

import "errors"

var (
	ErrAlreadyReferred   = errors.New("user already has a referrer")
	ErrInvalidCode       = errors.New("invalid referral code")
	ErrSelfReferral      = errors.New("cannot refer yourself")
	ErrDailyBonusClaimed = errors.New("daily bonus already claimed")
)
