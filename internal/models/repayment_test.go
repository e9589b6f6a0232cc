package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordFor(t *testing.T) {
	slots := []RepaymentSlot{
		{Slot: 0, Borrower: "0xaa", HasRepaid: true, RepaymentAmount: 50},
		{Slot: 1, Borrower: "0xbb"},
		{Slot: 2, Borrower: "0xaa"},
	}

	tests := []struct {
		name    string
		account string
		want    RepaymentRecord
	}{
		{"duplicate slots partly paid", "0xaa", RepaymentRecord{HasRepaid: false, RepaymentAmount: 50}},
		{"single slot unpaid", "0xbb", RepaymentRecord{}},
		{"no slot", "0xcc", RepaymentRecord{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RecordFor(slots, tt.account))
		})
	}

	slots[2].HasRepaid = true
	slots[2].RepaymentAmount = 51
	assert.Equal(t, RepaymentRecord{HasRepaid: true, RepaymentAmount: 101}, RecordFor(slots, "0xaa"))
}

func TestAllRepaid(t *testing.T) {
	assert.False(t, AllRepaid(nil))
	assert.False(t, AllRepaid([]RepaymentSlot{{HasRepaid: true}, {HasRepaid: false}}))
	assert.True(t, AllRepaid([]RepaymentSlot{{HasRepaid: true}, {HasRepaid: true}}))
}

func TestNormalizeAccount(t *testing.T) {
	assert.Equal(t, "0xabcdef", NormalizeAccount("  0xAbCdEf "))
	assert.Equal(t, []string{"0xaa", "0xaa", "0xbb"}, NormalizeAccounts([]string{"0xAA", "0xaa", "0xBb"}))
}

func TestLoanHasBorrower(t *testing.T) {
	l := &Loan{Borrowers: []string{"0xaa", "0xbb"}}
	assert.True(t, l.HasBorrower("0xbb"))
	assert.False(t, l.HasBorrower("0xcc"))
}
