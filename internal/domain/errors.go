package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotFound         = errors.New("not found")
	ErrExpired          = errors.New("pickup window expired")
	ErrAlreadyFinalized = errors.New("order already finalized")
	ErrConflict         = errors.New("concurrent update conflict")
	ErrInternal         = errors.New("internal error")
)

// FinalizedError is returned when an operation targets an order that is no longer pending.
// It carries the stored snapshot so callers can render the real outcome,
// e.g. "already picked up at 10:42", instead of a bare failure.
type FinalizedError struct {
	Order *Order
	Err   error // ErrAlreadyFinalized or ErrExpired
}

func NewAlreadyFinalizedError(order *Order) *FinalizedError {
	return &FinalizedError{Order: order, Err: ErrAlreadyFinalized}
}

func NewExpiredError(order *Order) *FinalizedError {
	return &FinalizedError{Order: order, Err: ErrExpired}
}

func (e *FinalizedError) Error() string {
	if e.Order == nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v: order %s is %s", e.Err, e.Order.ID, e.Order.Status)
}

func (e *FinalizedError) Unwrap() error {
	return e.Err
}

// Validationf builds an ErrValidation-wrapped error.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
