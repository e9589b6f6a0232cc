package service

import (
	"context"
	"fmt"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/models"
	"github.com/Dan9191/microloan/internal/repository"
	"github.com/Dan9191/microloan/internal/utils"
	"github.com/sirupsen/logrus"
)

// CreateGroupLoan pulls the split total from the lender and pushes one share to every borrower slot.
// Either the whole disbursal and the loan record take effect or nothing does.
func (s *Service) CreateGroupLoan(ctx context.Context, lender string, borrowers []string, requested uint64) (*models.Loan, error) {
	lender = models.NormalizeAccount(lender)
	borrowers = models.NormalizeAccounts(borrowers)
	fields := logrus.Fields{"lender": lender, "borrowers": len(borrowers), "amount": requested}

	if err := validateCreate(lender, borrowers, requested); err != nil {
		s.logFailure(err, fields, "Loan rejected")
		return nil, err
	}
	share, total, err := SplitShare(requested, len(borrowers))
	if err != nil {
		s.logFailure(err, fields, "Loan rejected")
		return nil, err
	}

	svc := s.config.ServiceAccount
	var loan *models.Loan
	err = s.store.Update(ctx, func(tx repository.Tx) error {
		// validate before any funds move
		allowed, err := tx.Allowance(ctx, lender, svc)
		if err != nil {
			return err
		}
		if allowed < total {
			return fmt.Errorf("lender approved %d of %d: %w", allowed, total, apperrors.ErrInsufficientAllowance)
		}
		bal, err := tx.BalanceOf(ctx, lender)
		if err != nil {
			return err
		}
		if bal < total {
			return fmt.Errorf("lender holds %d of %d: %w", bal, total, apperrors.ErrInsufficientBalance)
		}

		if err := tx.TransferFrom(ctx, svc, lender, svc, total); err != nil {
			return err
		}
		for _, borrower := range borrowers {
			if err := tx.Transfer(ctx, svc, borrower, share); err != nil {
				return fmt.Errorf("disburse to %s: %w", borrower, err)
			}
		}

		id, err := tx.NextLoanID(ctx)
		if err != nil {
			return err
		}
		loan = &models.Loan{
			ID:          id,
			Lender:      lender,
			Borrowers:   borrowers,
			ShareAmount: share,
			TotalAmount: total,
			IsActive:    true,
			CreatedAt:   s.now(),
		}
		loan.Signature = utils.SignLoan(loan, s.config.HMACSecret)
		return tx.InsertLoan(ctx, loan)
	})
	if err != nil {
		s.logFailure(err, fields, "Failed to create loan")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"loan_id": loan.ID,
		"lender":  lender,
		"share":   share,
		"total":   total,
	}).Info("Loan created")
	return loan, nil
}

func validateCreate(lender string, borrowers []string, requested uint64) error {
	if lender == "" {
		return apperrors.Invalid("lender", "is required")
	}
	if len(borrowers) == 0 {
		return apperrors.Invalid("borrowers", "must not be empty")
	}
	for i, b := range borrowers {
		if b == "" {
			return apperrors.Invalid(fmt.Sprintf("borrowers[%d]", i), "is required")
		}
	}
	if requested == 0 {
		return apperrors.Invalid("amount", "must be greater than zero")
	}
	return nil
}

// getVerifiedLoan loads a loan and checks its signature
func (s *Service) getVerifiedLoan(ctx context.Context, tx repository.Tx, loanID uint64) (*models.Loan, error) {
	loan, err := tx.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	if !utils.VerifyLoan(loan, s.config.HMACSecret) {
		s.log.WithField("loan_id", loanID).Error("Loan signature mismatch")
		return nil, fmt.Errorf("loan %d: %w", loanID, apperrors.ErrTamperedLoan)
	}
	return loan, nil
}

// GetLoan returns a loan by ID
func (s *Service) GetLoan(ctx context.Context, loanID uint64) (*models.Loan, error) {
	var loan *models.Loan
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		loan, err = s.getVerifiedLoan(ctx, tx, loanID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return loan, nil
}

// GetShareAmount returns the amount each borrower slot owes
func (s *Service) GetShareAmount(ctx context.Context, loanID uint64) (uint64, error) {
	loan, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return 0, err
	}
	return loan.ShareAmount, nil
}

// GetTotalLoans returns the number of loans ever created
func (s *Service) GetTotalLoans(ctx context.Context) (uint64, error) {
	var count uint64
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		count, err = tx.CountLoans(ctx)
		return err
	})
	return count, err
}

// ListLoans returns up to count loans starting at offset start. When account is set
// only loans it lends or borrows in are returned, with its repayment status attached.
func (s *Service) ListLoans(ctx context.Context, start, count int, account string) ([]models.LoanView, error) {
	if start < 0 {
		return nil, apperrors.Invalid("start", "must not be negative")
	}
	account = models.NormalizeAccount(account)

	views := make([]models.LoanView, 0)
	err := s.store.View(ctx, func(tx repository.Tx) error {
		loans, err := tx.ListLoans(ctx, repository.ListOpts{Offset: start, Limit: count, Account: account})
		if err != nil {
			return err
		}
		for _, loan := range loans {
			slots, err := tx.Slots(ctx, loan.ID)
			if err != nil {
				return err
			}
			view := models.LoanView{Loan: loan, FullyRepaid: models.AllRepaid(slots)}
			if account != "" {
				rec := models.RecordFor(slots, account)
				view.Status = &rec
			}
			views = append(views, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// Outstanding lists every loan with at least one unpaid slot
func (s *Service) Outstanding(ctx context.Context) ([]models.OutstandingLoan, error) {
	var out []models.OutstandingLoan
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Outstanding(ctx)
		return err
	})
	return out, err
}
