package cart

import "errors"

// Sentinel errors for the cart service layer.
var (
	ErrNotFound    = errors.New("cart not found")
	ErrMissingID   = errors.New("cart identifier is required")
	ErrAlreadySent = errors.New("reminder stage already sent")
)
