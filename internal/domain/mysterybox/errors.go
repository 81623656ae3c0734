package mysterybox

import "errors"

var (
	ErrAlreadyOpened      = errors.New("mystery box already opened this week")
	ErrBelowMinimum       = errors.New("not enough points for a mystery box")
	ErrInsufficientPoints = errors.New("insufficient points")
)
