package domain

import "errors"

// Error kinds surfaced by the POS operations. Callers wrap them with context
// and match with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrEmptyCart              = errors.New("cart is empty, nothing to checkout")
	ErrMissingShippingAddress = errors.New("shipping address is required for home delivery")
	ErrStockConflict          = errors.New("stock changed during checkout, please resubmit")
	ErrValidation             = errors.New("invalid input")
)
