package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Dan9191/microloan/internal/models"
)

// loanPayload serializes the immutable fields of a loan for signing.
// Every field is length-prefixed so no choice of account strings can collide.
func loanPayload(loan *models.Loan) string {
	var b strings.Builder
	field := func(v string) {
		fmt.Fprintf(&b, "%d:%s;", len(v), v)
	}
	field(strconv.FormatUint(loan.ID, 10))
	field(loan.Lender)
	field(strconv.Itoa(len(loan.Borrowers)))
	for _, borrower := range loan.Borrowers {
		field(borrower)
	}
	field(strconv.FormatUint(loan.ShareAmount, 10))
	field(strconv.FormatUint(loan.TotalAmount, 10))
	return b.String()
}

// SignLoan generates an HMAC for the immutable loan fields
func SignLoan(loan *models.Loan, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(loanPayload(loan)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyLoan checks the stored signature against the loan fields
func VerifyLoan(loan *models.Loan, secret string) bool {
	expected, err := hex.DecodeString(SignLoan(loan, secret))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(loan.Signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
