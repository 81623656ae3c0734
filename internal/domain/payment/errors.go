package payment

import "errors"

var (
	ErrAmountOutOfRange    = errors.New("deposit amount must be between 10 and 50,000 ETB")
	ErrAmountMismatch      = errors.New("provider amount does not match the deposit")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrVerifyUnsupported   = errors.New("provider does not support verification")
	ErrNotDeposit          = errors.New("transaction is not a deposit")
	ErrInvalidReceipt      = errors.New("invalid receipt file")
	ErrReceiptsDisabled    = errors.New("receipt uploads are not configured")
	ErrNoReceipt           = errors.New("deposit has no receipt")
)
