package ledger

import "errors"

var (
	ErrUnbalancedEntry  = errors.New("ledger entry is unbalanced")
	ErrTooFewLines      = errors.New("ledger entry needs at least two lines")
	ErrNegativeAmount   = errors.New("ledger line amounts must be non-negative")
	ErrEmptyEntry       = errors.New("ledger entry moves no value")
	ErrMissingKey       = errors.New("ledger entry needs an idempotency key")
	ErrAccountsMissing  = errors.New("ledger account not provisioned")
	ErrInvalidAccountID = errors.New("invalid ledger account id")

	ErrInvalidAccountType = errors.New("invalid ledger account type")
)
