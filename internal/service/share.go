package service

import (
	"github.com/Dan9191/microloan/internal/apperrors"
)

// toleranceDivisor sets the accepted repayment band to share/10000 (0.01%)
const toleranceDivisor = 10000

// SplitShare divides requested equally between n borrower slots.
// The remainder requested-total is never moved and stays with the lender.
func SplitShare(requested uint64, n int) (share, total uint64, err error) {
	if n <= 0 {
		return 0, 0, apperrors.Invalid("borrowers", "must not be empty")
	}
	share = requested / uint64(n)
	if share == 0 {
		return 0, 0, apperrors.ErrInvalidShare
	}
	return share, share * uint64(n), nil
}

// WithinTolerance reports whether amount is within share/10000 of share, using truncating division.
func WithinTolerance(amount, share uint64) bool {
	band := share / toleranceDivisor
	if amount > share {
		return amount-share <= band
	}
	return share-amount <= band
}
