package transaction

import "errors"

var (
	ErrNotFound           = errors.New("transaction not found")
	ErrAlreadyProcessed   = errors.New("transaction already processed")
	ErrDuplicateReference = errors.New("duplicate transaction reference")
	ErrInvalidType        = errors.New("invalid transaction type")
	ErrInvalidStatus      = errors.New("invalid transaction status")
)
