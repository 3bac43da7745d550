package cart

import "errors"

// Domain-level error values returned by the cart service.
var (
	ErrMissingIdentity      = errors.New("missing cart identity")
	ErrNotFound             = errors.New("cart not found")
	ErrDuplicateItem        = errors.New("duplicate cart item")
	ErrInvalidItem          = errors.New("invalid cart item")
	ErrCartClosed           = errors.New("cart closed")
	ErrInvalidServiceConfig = errors.New("invalid service config")
)
