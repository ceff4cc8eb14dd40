package models

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers unknown stock/user/transaction references.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientFunds is returned when a withdrawal exceeds the balance.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrPriceUnavailable is returned when no price or rate could be fetched
	// and there is no previously cached value to fall back to.
	ErrPriceUnavailable = errors.New("price unavailable")
)

// ValidationError rejects bad input before any ledger or position state is
// mutated: non-positive quantities, negative prices, oversells, withdrawals
// exceeding the balance.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
