package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Dan9191/microloan/internal/models"
)

func TestSignLoan(t *testing.T) {
	loan := &models.Loan{
		ID:          1,
		Lender:      "0x1111111111111111111111111111111111111111",
		Borrowers:   []string{"0x2222222222222222222222222222222222222222"},
		ShareAmount: 50,
		TotalAmount: 50,
	}
	loan.Signature = SignLoan(loan, "secret")

	assert.Len(t, loan.Signature, 64)
	assert.True(t, VerifyLoan(loan, "secret"))
	assert.False(t, VerifyLoan(loan, "other-secret"))

	loan.ShareAmount = 500
	assert.False(t, VerifyLoan(loan, "secret"))
}

func TestSignLoanFieldBoundaries(t *testing.T) {
	tests := []struct {
		name string
		a, b models.Loan
	}{
		{
			name: "separator inside a borrower",
			a:    models.Loan{ID: 1, Lender: "0xl", Borrowers: []string{"0xa,0xb"}, ShareAmount: 5, TotalAmount: 5},
			b:    models.Loan{ID: 1, Lender: "0xl", Borrowers: []string{"0xa", "0xb"}, ShareAmount: 5, TotalAmount: 5},
		},
		{
			name: "separator inside the lender",
			a:    models.Loan{ID: 1, Lender: "0xl|0xa", Borrowers: []string{"0xb"}, ShareAmount: 5, TotalAmount: 5},
			b:    models.Loan{ID: 1, Lender: "0xl", Borrowers: []string{"0xa", "0xb"}, ShareAmount: 5, TotalAmount: 5},
		},
		{
			name: "empty borrower",
			a:    models.Loan{ID: 1, Lender: "0xl", Borrowers: []string{""}, ShareAmount: 5, TotalAmount: 5},
			b:    models.Loan{ID: 1, Lender: "0xl", Borrowers: nil, ShareAmount: 5, TotalAmount: 5},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, SignLoan(&tt.a, "secret"), SignLoan(&tt.b, "secret"))
		})
	}
}

func TestVerifyLoanGarbageSignature(t *testing.T) {
	loan := &models.Loan{ID: 1, Signature: "not-hex"}
	assert.False(t, VerifyLoan(loan, "secret"))
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   uint64
		decimals int32
		want     string
	}{
		{50000000, 6, "50"},
		{33500000, 6, "33.5"},
		{1, 6, "0.000001"},
		{0, 6, "0"},
		{99, 0, "99"},
		{18446744073709551615, 18, "18.446744073709551615"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.decimals))
		})
	}
}
