package models

import "time"

// Loan represents a pooled loan split equally between borrower slots
type Loan struct {
	ID          uint64    `json:"id"`
	Lender      string    `json:"lender"`
	Borrowers   []string  `json:"borrowers"`
	ShareAmount uint64    `json:"share_amount"`
	TotalAmount uint64    `json:"total_amount"`
	IsActive    bool      `json:"is_active"`
	Signature   string    `json:"signature"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasBorrower reports whether account holds at least one slot in the loan.
func (l *Loan) HasBorrower(account string) bool {
	for _, b := range l.Borrowers {
		if b == account {
			return true
		}
	}
	return false
}

// LoanView is a loan as seen by one account, used for listings
type LoanView struct {
	Loan
	FullyRepaid bool             `json:"fully_repaid"`
	Status      *RepaymentRecord `json:"account_status,omitempty"`
}

// OutstandingLoan summarizes the unpaid part of a loan
type OutstandingLoan struct {
	LoanID       uint64   `json:"loan_id"`
	Lender       string   `json:"lender"`
	UnpaidSlots  int      `json:"unpaid_slots"`
	UnpaidAmount uint64   `json:"unpaid_amount"`
	Debtors      []string `json:"debtors"`
}
