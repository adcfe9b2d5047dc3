package domain

import "errors"

var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrIncompleteSizing = errors.New("every item needs a size")
	ErrInvalidSize      = errors.New("size not available for item")
	ErrEmptyCart        = errors.New("cart is empty")
	ErrLookNotFound     = errors.New("look not found")
	ErrItemNotFound     = errors.New("item not found in look")
	ErrNoGeneratedLook  = errors.New("no generated look to add")
)
