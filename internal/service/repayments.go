package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/models"
	"github.com/Dan9191/microloan/internal/repository"
	"github.com/sirupsen/logrus"
)

// Repay settles the caller's first unpaid slot of a loan. Checks run in order:
// the loan exists, the caller is a borrower, a slot is still unpaid, the amount is within tolerance.
// The pull from the borrower, the push to the lender and the slot update commit together.
func (s *Service) Repay(ctx context.Context, borrower string, loanID, amount uint64) (models.RepaymentRecord, error) {
	borrower = models.NormalizeAccount(borrower)
	fields := logrus.Fields{"loan_id": loanID, "borrower": borrower, "amount": amount}

	var rec models.RepaymentRecord
	err := s.store.Update(ctx, func(tx repository.Tx) error {
		loan, err := s.getVerifiedLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		if !loan.HasBorrower(borrower) {
			return apperrors.ErrNotABorrower
		}

		slots, err := tx.Slots(ctx, loanID)
		if err != nil {
			return err
		}
		slot := -1
		for i, sl := range slots {
			if sl.Borrower == borrower && !sl.HasRepaid {
				slot = i
				break
			}
		}
		if slot < 0 {
			return apperrors.ErrAlreadyRepaid
		}

		if !WithinTolerance(amount, loan.ShareAmount) {
			return fmt.Errorf("offered %d for share %d: %w", amount, loan.ShareAmount, apperrors.ErrAmountMismatch)
		}

		if err := tx.TransferFrom(ctx, s.config.ServiceAccount, borrower, loan.Lender, amount); err != nil {
			return err
		}
		at := s.now()
		if err := tx.MarkRepaid(ctx, loanID, slots[slot].Slot, amount, at); err != nil {
			return err
		}

		slots[slot].HasRepaid = true
		slots[slot].RepaymentAmount = amount
		slots[slot].RepaidAt = &at
		rec = models.RecordFor(slots, borrower)
		return nil
	})
	if err != nil {
		s.logFailure(err, fields, "Repayment rejected")
		return models.RepaymentRecord{}, err
	}

	s.log.WithFields(fields).Info("Repayment recorded")
	return rec, nil
}

// GetRepaymentStatus returns the repayment record of account in a loan.
// An account holding no slot reads as the zero record.
func (s *Service) GetRepaymentStatus(ctx context.Context, loanID uint64, account string) (models.RepaymentRecord, error) {
	slots, err := s.Slots(ctx, loanID)
	if err != nil {
		return models.RepaymentRecord{}, err
	}
	return models.RecordFor(slots, models.NormalizeAccount(account)), nil
}

// IsLoanFullyRepaid reports whether every borrower slot of the loan has repaid
func (s *Service) IsLoanFullyRepaid(ctx context.Context, loanID uint64) (bool, error) {
	slots, err := s.Slots(ctx, loanID)
	if err != nil {
		return false, err
	}
	return models.AllRepaid(slots), nil
}

// Slots returns the per-slot repayment state of a loan
func (s *Service) Slots(ctx context.Context, loanID uint64) ([]models.RepaymentSlot, error) {
	var slots []models.RepaymentSlot
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		slots, err = tx.Slots(ctx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return slots, nil
}
