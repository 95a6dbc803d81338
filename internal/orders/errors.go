package orders

import (
	"errors"
	"fmt"
)

// Stable error codes returned to HTTP clients.
const (
	CodeValidation        = "validation_error"
	CodeNotFound          = "not_found"
	CodeInsufficientStock = "insufficient_stock"
	CodeInvalidTransition = "invalid_transition"
	CodeInternal          = "internal_error"
)

// ErrOrderNumberTaken is returned by OrderRepo.InsertOrder on a number collision.
var ErrOrderNumberTaken = errors.New("order number already taken")

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

type NotFoundError struct {
	Entity string // customer | product | order
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func NewNotFound(entity, id string) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: id}
}

type InsufficientStockError struct {
	ProductID string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot change order status from %s to %s", e.From, e.To)
}

// IsNotFound reports whether err is a NotFoundError for the given entity ("" matches any).
func IsNotFound(err error, entity string) bool {
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		return false
	}
	return entity == "" || nf.Entity == entity
}

// Code maps an error to its client-facing code.
func Code(err error) string {
	var (
		ve *ValidationError
		nf *NotFoundError
		is *InsufficientStockError
		it *InvalidTransitionError
	)
	switch {
	case errors.As(err, &ve):
		return CodeValidation
	case errors.As(err, &nf):
		return CodeNotFound
	case errors.As(err, &is):
		return CodeInsufficientStock
	case errors.As(err, &it):
		return CodeInvalidTransition
	default:
		return CodeInternal
	}
}
