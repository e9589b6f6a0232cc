package repository

import (
	"context"
	"fmt"
)

// schema is applied in order; every statement is idempotent
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS microloan`,
	`CREATE TABLE IF NOT EXISTS microloan.balances (
		account VARCHAR(64) PRIMARY KEY,
		amount  NUMERIC(20,0) NOT NULL DEFAULT 0
			CHECK (amount >= 0 AND amount <= 18446744073709551615)
	)`,
	`CREATE TABLE IF NOT EXISTS microloan.allowances (
		owner   VARCHAR(64) NOT NULL,
		spender VARCHAR(64) NOT NULL,
		amount  NUMERIC(20,0) NOT NULL DEFAULT 0 CHECK (amount >= 0),
		PRIMARY KEY (owner, spender)
	)`,
	`CREATE TABLE IF NOT EXISTS microloan.loan_counter (
		id    SMALLINT PRIMARY KEY CHECK (id = 1),
		value BIGINT NOT NULL DEFAULT 0
	)`,
	`INSERT INTO microloan.loan_counter (id, value) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS microloan.loans (
		id           BIGINT PRIMARY KEY,
		lender       VARCHAR(64) NOT NULL,
		share_amount NUMERIC(20,0) NOT NULL CHECK (share_amount > 0),
		total_amount NUMERIC(20,0) NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT TRUE,
		signature    VARCHAR(64) NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS microloan.loan_borrowers (
		loan_id          BIGINT NOT NULL REFERENCES microloan.loans (id),
		slot             INTEGER NOT NULL,
		borrower         VARCHAR(64) NOT NULL,
		has_repaid       BOOLEAN NOT NULL DEFAULT FALSE,
		repayment_amount NUMERIC(20,0) NOT NULL DEFAULT 0,
		repaid_at        TIMESTAMPTZ,
		PRIMARY KEY (loan_id, slot)
	)`,
	`CREATE INDEX IF NOT EXISTS loan_borrowers_borrower_idx ON microloan.loan_borrowers (borrower)`,
	`CREATE INDEX IF NOT EXISTS loans_lender_idx ON microloan.loans (lender)`,
}

// Migrate creates the microloan schema if it does not exist yet
func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Mint credits an account outside any loan flow. Used to provision balances in dev setups.
func (s *PostgresStore) Mint(ctx context.Context, account string, value uint64) error {
	query := `
		INSERT INTO microloan.balances (account, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET amount = microloan.balances.amount + EXCLUDED.amount`
	if _, err := s.db.ExecContext(ctx, query, account, amount(value)); err != nil {
		return fmt.Errorf("failed to mint for %s: %w", account, mapPQError(err))
	}
	return nil
}
