package repository

import (
	"context"
	"time"

	"github.com/Dan9191/microloan/internal/models"
)

// ValueLedger is the fungible-balance surface loans and repayments move funds through
type ValueLedger interface {
	BalanceOf(ctx context.Context, account string) (uint64, error)
	Allowance(ctx context.Context, owner, spender string) (uint64, error)
	Approve(ctx context.Context, owner, spender string, amount uint64) error
	Transfer(ctx context.Context, from, to string, amount uint64) error
	// TransferFrom moves amount from owner to `to`, spending spender's allowance.
	TransferFrom(ctx context.Context, spender, owner, to string, amount uint64) error
}

// ListOpts narrows a loan listing
type ListOpts struct {
	Offset int
	Limit  int
	// Account, when set, keeps loans where it is the lender or holds a borrower slot.
	Account string
}

// LoanBook stores loans, the loan counter and per-slot repayment state
type LoanBook interface {
	NextLoanID(ctx context.Context) (uint64, error)
	// InsertLoan stores the loan and a zero-valued repayment slot per borrower occurrence.
	InsertLoan(ctx context.Context, loan *models.Loan) error
	GetLoan(ctx context.Context, loanID uint64) (*models.Loan, error)
	CountLoans(ctx context.Context) (uint64, error)
	ListLoans(ctx context.Context, opts ListOpts) ([]models.Loan, error)
	Slots(ctx context.Context, loanID uint64) ([]models.RepaymentSlot, error)
	// MarkRepaid flips an unpaid slot to paid. It fails with apperrors.ErrAlreadyRepaid
	// if the slot was already paid, so concurrent repayments of one slot cannot both win.
	MarkRepaid(ctx context.Context, loanID uint64, slot int, amount uint64, at time.Time) error
	Outstanding(ctx context.Context) ([]models.OutstandingLoan, error)
}

// Tx is one all-or-nothing unit of work over the ledger and the loan book
type Tx interface {
	ValueLedger
	LoanBook
}

// Store runs units of work
type Store interface {
	// Update runs fn atomically: either every write in fn takes effect or none does.
	Update(ctx context.Context, fn func(Tx) error) error
	// View runs fn against a consistent read-only snapshot.
	View(ctx context.Context, fn func(Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}

// Minter provisions balances outside the loan flow
type Minter interface {
	Mint(ctx context.Context, account string, amount uint64) error
}
