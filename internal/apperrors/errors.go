package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for loan and repayment failures.
var (
	// Loan registry errors
	ErrLoanNotFound = errors.New("microloan: loan not found")
	ErrInvalidShare = errors.New("microloan: amount too small to split between borrowers")

	// Value ledger errors
	ErrInsufficientBalance   = errors.New("microloan: insufficient balance")
	ErrInsufficientAllowance = errors.New("microloan: insufficient allowance")
	ErrBalanceOverflow       = errors.New("microloan: balance overflow")

	// Repayment errors
	ErrNotABorrower   = errors.New("microloan: only borrowers can repay this loan")
	ErrAlreadyRepaid  = errors.New("microloan: borrower has already repaid")
	ErrAmountMismatch = errors.New("microloan: repayment amount must be close to share amount")

	// General errors
	ErrInvalidInput        = errors.New("microloan: invalid input")
	ErrUnauthorized        = errors.New("microloan: unauthorized")
	ErrTamperedLoan        = errors.New("microloan: loan signature mismatch")
	ErrTransactionConflict = errors.New("microloan: transaction conflict")
	ErrReadOnly            = errors.New("microloan: read-only transaction")
)

// ValidationError represents a validation failure on a single field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("microloan: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap makes ValidationError match ErrInvalidInput.
func (e ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// Invalid builds a ValidationError.
func Invalid(field, message string) error {
	return ValidationError{Field: field, Message: message}
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrLoanNotFound)
}

// IsAuthorization returns true if the caller is not allowed to act on the loan.
func IsAuthorization(err error) bool {
	return errors.Is(err, ErrNotABorrower) || errors.Is(err, ErrUnauthorized)
}

// IsState returns true if the error is caused by the current repayment state.
func IsState(err error) bool {
	return errors.Is(err, ErrAlreadyRepaid)
}

// IsAmount returns true if the error is about the offered or requested amount.
func IsAmount(err error) bool {
	return errors.Is(err, ErrAmountMismatch) || errors.Is(err, ErrInvalidShare)
}

// IsFunds returns true if the value ledger rejected a transfer.
func IsFunds(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInsufficientAllowance) ||
		errors.Is(err, ErrBalanceOverflow)
}

// IsRetryable returns true if the same call may succeed when repeated unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}
