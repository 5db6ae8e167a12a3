package service

import "errors"

var (
	ErrEmptyCart               = errors.New("cart is empty, nothing to checkout")
	ErrIllegalTransition       = errors.New("illegal transition of order status")
	ErrDeliveryAddressRequired = errors.New("delivery orders require an address")
	ErrInvalidInput            = errors.New("invalid input")
)
