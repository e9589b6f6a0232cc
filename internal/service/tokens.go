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

// Approve sets the amount the service account may pull from owner
func (s *Service) Approve(ctx context.Context, owner string, amount uint64) (*models.Allowance, error) {
	owner = models.NormalizeAccount(owner)
	if owner == "" {
		return nil, apperrors.Invalid("owner", "is required")
	}

	err := s.store.Update(ctx, func(tx repository.Tx) error {
		return tx.Approve(ctx, owner, s.config.ServiceAccount, amount)
	})
	if err != nil {
		s.logFailure(err, logrus.Fields{"owner": owner, "amount": amount}, "Failed to approve")
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"owner": owner, "amount": amount}).Info("Allowance approved")
	return &models.Allowance{Owner: owner, Spender: s.config.ServiceAccount, Amount: amount}, nil
}

// Allowance returns what the service account may still pull from owner
func (s *Service) Allowance(ctx context.Context, owner string) (*models.Allowance, error) {
	owner = models.NormalizeAccount(owner)
	var allowed uint64
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		allowed, err = tx.Allowance(ctx, owner, s.config.ServiceAccount)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &models.Allowance{Owner: owner, Spender: s.config.ServiceAccount, Amount: allowed}, nil
}

// BalanceOf returns an account's ledger balance
func (s *Service) BalanceOf(ctx context.Context, account string) (*models.Balance, error) {
	account = models.NormalizeAccount(account)
	var bal uint64
	err := s.store.View(ctx, func(tx repository.Tx) error {
		var err error
		bal, err = tx.BalanceOf(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &models.Balance{Account: account, Amount: bal, Display: s.FormatAmount(bal)}, nil
}

// FormatAmount renders a smallest-unit amount with the token symbol
func (s *Service) FormatAmount(amount uint64) string {
	return fmt.Sprintf("%s %s", utils.FormatAmount(amount, s.config.TokenDecimals), s.config.TokenSymbol)
}
