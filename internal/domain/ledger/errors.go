package ledger

import (
	"errors"
	"fmt"

	"github.com/khata/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes of the ledger error taxonomy
const (
	CodeValidation        = "VALIDATION_ERROR"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONCURRENCY_CONFLICT"
	CodeNoPendingDebt     = "NO_PENDING_DEBT"
	CodePartialAllocation = "PARTIAL_ALLOCATION"
)

// NewValidationError reports input that breaks a ledger rule
func NewValidationError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeValidation, message)
}

// NewNotFoundError reports a missing debt or payment
func NewNotFoundError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeNotFound, message)
}

// NewConflictError reports a write based on state that changed underneath it
func NewConflictError(message string) *shared.DomainError {
	return shared.NewDomainError(CodeConflict, message)
}

// NewNoPendingDebtError reports a collection for an owner with nothing open
func NewNoPendingDebtError() *shared.DomainError {
	return shared.NewDomainError(CodeNoPendingDebt, "No pending debts to collect against")
}

var (
	ErrDebtNotFound    = NewNotFoundError("Debt not found")
	ErrPaymentNotFound = NewNotFoundError("Payment not found")
	ErrNothingToPay    = NewValidationError("Debt has nothing left to pay")
	ErrNonPositive     = NewValidationError("Amount must be greater than zero")
	ErrBelowPaid       = NewValidationError("Cannot reduce total below amount already paid")
)

// PartialAllocationError is returned when a collection batch stopped part way.
// Payments recorded before the failure stand; nothing is rolled back.
type PartialAllocationError struct {
	AmountApplied   decimal.Decimal
	AmountRemaining decimal.Decimal
	Applied         []Allocation
	Cause           error
}

// Error implements the error interface
func (e *PartialAllocationError) Error() string {
	return fmt.Sprintf("collection stopped after applying %s, %s left unapplied: %v",
		e.AmountApplied.StringFixed(2), e.AmountRemaining.StringFixed(2), e.Cause)
}

// Unwrap exposes the step failure
func (e *PartialAllocationError) Unwrap() error {
	return e.Cause
}

// Code returns the taxonomy code
func (e *PartialAllocationError) Code() string {
	return CodePartialAllocation
}

func hasCode(err error, code string) bool {
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool { return hasCode(err, CodeValidation) }

// IsNotFound reports whether err is a NotFoundError
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsConflict reports whether err is a ConflictError
func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

// IsNoPendingDebt reports whether err is a NoPendingDebtError
func IsNoPendingDebt(err error) bool { return hasCode(err, CodeNoPendingDebt) }

// AsPartialAllocation extracts a PartialAllocationError from err
func AsPartialAllocation(err error) (*PartialAllocationError, bool) {
	var partial *PartialAllocationError
	if errors.As(err, &partial) {
		return partial, true
	}
	return nil, false
}
