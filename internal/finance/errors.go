package finance

import "errors"

// Every error returned by Service wraps exactly one of these.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrStorage           = errors.New("storage error")
)
