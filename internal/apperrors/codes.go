package apperrors

import "errors"

// Machine-readable error codes returned to API clients.
const (
	CodeUnknown               = "UNKNOWN"
	CodeLoanNotFound          = "LOAN_NOT_FOUND"
	CodeInvalidShare          = "INVALID_SHARE"
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	CodeBalanceOverflow       = "BALANCE_OVERFLOW"
	CodeNotABorrower          = "NOT_A_BORROWER"
	CodeAlreadyRepaid         = "ALREADY_REPAID"
	CodeAmountMismatch        = "AMOUNT_MISMATCH"
	CodeInvalidInput          = "INVALID_INPUT"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeTamperedLoan          = "TAMPERED_LOAN"
	CodeTransactionConflict   = "TRANSACTION_CONFLICT"
)

var codes = []struct {
	err  error
	code string
}{
	{ErrLoanNotFound, CodeLoanNotFound},
	{ErrInvalidShare, CodeInvalidShare},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrInsufficientAllowance, CodeInsufficientAllowance},
	{ErrBalanceOverflow, CodeBalanceOverflow},
	{ErrNotABorrower, CodeNotABorrower},
	{ErrAlreadyRepaid, CodeAlreadyRepaid},
	{ErrAmountMismatch, CodeAmountMismatch},
	{ErrInvalidInput, CodeInvalidInput},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrTamperedLoan, CodeTamperedLoan},
	{ErrTransactionConflict, CodeTransactionConflict},
}

// Code maps an error to its machine-readable code.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeUnknown
}
