package user

import "errors"

var (
	ErrUserNotFound         = errors.New("user not found")
	ErrDuplicatePhoneNumber = errors.New("phone number already registered")
)
