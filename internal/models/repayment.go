package models

import "time"

// RepaymentSlot is the repayment state of one borrower occurrence in a loan
type RepaymentSlot struct {
	LoanID          uint64     `json:"loan_id"`
	Slot            int        `json:"slot"`
	Borrower        string     `json:"borrower"`
	HasRepaid       bool       `json:"has_repaid"`
	RepaymentAmount uint64     `json:"repayment_amount"`
	RepaidAt        *time.Time `json:"repaid_at,omitempty"`
}

// RepaymentRecord is the repayment state reported for a (loan, account) pair
type RepaymentRecord struct {
	HasRepaid       bool   `json:"has_repaid"`
	RepaymentAmount uint64 `json:"repayment_amount"`
}

// RecordFor folds the slots held by account into a single record.
// An account without slots reads as the zero record.
func RecordFor(slots []RepaymentSlot, account string) RepaymentRecord {
	var rec RepaymentRecord
	held := 0
	paid := 0
	for _, s := range slots {
		if s.Borrower != account {
			continue
		}
		held++
		if s.HasRepaid {
			paid++
			rec.RepaymentAmount += s.RepaymentAmount
		}
	}
	rec.HasRepaid = held > 0 && held == paid
	return rec
}

// AllRepaid reports whether every slot has been repaid.
func AllRepaid(slots []RepaymentSlot) bool {
	if len(slots) == 0 {
		return false
	}
	for _, s := range slots {
		if !s.HasRepaid {
			return false
		}
	}
	return true
}
