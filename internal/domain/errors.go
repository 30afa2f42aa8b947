package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrUnauthorized         = errors.New("unauthorized")
	ErrForbidden            = errors.New("forbidden")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrAmountMismatch       = errors.New("payment amount does not match order total")
	ErrConflict             = errors.New("conflict")
	ErrReservationNotActive = errors.New("reservation is not active")
)

// ValidationError reports malformed input the caller can correct.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// InsufficientStockError is returned when a reservation or stock removal
// needs more units than are available.
type InsufficientStockError struct {
	Target    LineTarget
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Target, e.Requested, e.Available)
}

// StockExceededError is the cart-side soft check failure.
type StockExceededError struct {
	Target    LineTarget
	Requested int
	Available int
}

func (e *StockExceededError) Error() string {
	return fmt.Sprintf("only %d available for %s, requested %d", e.Available, e.Target, e.Requested)
}

type ProductUnavailableError struct {
	Target LineTarget
}

func (e *ProductUnavailableError) Error() string {
	return fmt.Sprintf("%s is not available for sale", e.Target)
}

type InvalidCouponError struct {
	Code   string
	Reason string
}

func (e *InvalidCouponError) Error() string {
	return fmt.Sprintf("coupon %q is invalid: %s", e.Code, e.Reason)
}

type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %s to %s", e.Entity, e.From, e.To)
}

// ReconciliationError means an order was persisted but its stock was not
// fully committed. It needs an operator and must not be retried.
type ReconciliationError struct {
	OrderNumber string
	Pending     []string
	Err         error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("order %s requires reconciliation (%d reservations uncommitted): %v", e.OrderNumber, len(e.Pending), e.Err)
}

func (e *ReconciliationError) Unwrap() error {
	return e.Err
}
