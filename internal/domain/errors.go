package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrOutOfStock indicates an add was attempted on a product that is
	// not currently purchasable. Rejected before any state change.
	ErrOutOfStock = errors.New("product out of stock")
)
