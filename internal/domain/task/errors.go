package task

import "errors"

var (
	ErrTaskNotFound        = errors.New("task not found")
	ErrTaskInactive        = errors.New("task is not active")
	ErrAlreadySubmitted    = errors.New("task already submitted")
	ErrSubmissionNotFound  = errors.New("submission not found")
	ErrAlreadyReviewed     = errors.New("submission already reviewed")
	ErrInvalidReward       = errors.New("reward must not be negative")
	ErrRejectionReasonSize = errors.New("rejection reason too long")
)
