package browse

import "errors"

// Sentinel errors for the browse service layer.
var (
	ErrMissingProduct = errors.New("product identifier is required")
	ErrNothingToFlag  = errors.New("no eligible views to flag")
)
