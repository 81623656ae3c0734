package wallet

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be greater than zero")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrTasksNotApproved    = errors.New("required tasks are not approved")
	ErrNoGatingTasks       = errors.New("no active tasks available for withdrawal")
	ErrNotWithdrawal       = errors.New("transaction is not a withdrawal")
)
