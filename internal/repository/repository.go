package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/models"
	"github.com/lib/pq"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = 20 * time.Millisecond
)

// PostgresStore provides database operations over the microloan schema
type PostgresStore struct {
	db          *sql.DB
	maxAttempts int
	retryDelay  time.Duration
}

// NewPostgresStore initializes a new Postgres-backed store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, maxAttempts: defaultMaxAttempts, retryDelay: defaultRetryDelay}
}

// Update runs fn inside a serializable transaction. A transaction aborted by a
// serialization conflict is rerun from the start, up to maxAttempts times.
func (s *PostgresStore) Update(ctx context.Context, fn func(Tx) error) error {
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		if err = s.update(ctx, fn); !apperrors.IsRetryable(err) {
			return err
		}
		if attempt == s.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return err
		case <-time.After(time.Duration(attempt) * s.retryDelay):
		}
	}
	return err
}

func (s *PostgresStore) update(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPQError(err))
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", mapPQError(err))
	}
	return nil
}

// View runs fn inside a read-only transaction
func (s *PostgresStore) View(ctx context.Context, fn func(Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", mapPQError(err))
	}
	defer tx.Rollback()

	if err := fn(&pgTx{tx: tx, readOnly: true}); err != nil {
		return err
	}
	return tx.Commit()
}

// Ping checks the database connection
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// mapPQError translates Postgres error codes into application errors
func mapPQError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}
	switch pqErr.Code {
	case "40001", "40P01": // serialization_failure, deadlock_detected
		return fmt.Errorf("%s: %w", pqErr.Message, apperrors.ErrTransactionConflict)
	case "23514": // check_violation on the balance ceiling
		return fmt.Errorf("%s: %w", pqErr.Message, apperrors.ErrBalanceOverflow)
	}
	return err
}

// amount encodes a uint64 for NUMERIC columns; database/sql rejects uint64 values above MaxInt64
func amount(v uint64) string {
	return strconv.FormatUint(v, 10)
}

type pgTx struct {
	tx       *sql.Tx
	readOnly bool
}

func (t *pgTx) writable() error {
	if t.readOnly {
		return apperrors.ErrReadOnly
	}
	return nil
}

// ==================== Value ledger ====================

func (t *pgTx) BalanceOf(ctx context.Context, account string) (uint64, error) {
	var bal uint64
	query := `SELECT amount FROM microloan.balances WHERE account = $1`
	err := t.tx.QueryRowContext(ctx, query, account).Scan(&bal)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance of %s: %w", account, mapPQError(err))
	}
	return bal, nil
}

func (t *pgTx) Allowance(ctx context.Context, owner, spender string) (uint64, error) {
	var allowed uint64
	query := `SELECT amount FROM microloan.allowances WHERE owner = $1 AND spender = $2`
	err := t.tx.QueryRowContext(ctx, query, owner, spender).Scan(&allowed)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read allowance of %s: %w", owner, mapPQError(err))
	}
	return allowed, nil
}

func (t *pgTx) Approve(ctx context.Context, owner, spender string, value uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	query := `
		INSERT INTO microloan.allowances (owner, spender, amount)
		VALUES ($1, $2, $3::numeric)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount`
	if _, err := t.tx.ExecContext(ctx, query, owner, spender, amount(value)); err != nil {
		return fmt.Errorf("failed to approve %s: %w", spender, mapPQError(err))
	}
	return nil
}

func (t *pgTx) Transfer(ctx context.Context, from, to string, value uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	if value == 0 {
		return nil
	}
	if from == to {
		bal, err := t.BalanceOf(ctx, from)
		if err != nil {
			return err
		}
		if bal < value {
			return fmt.Errorf("transfer %d from %s: %w", value, from, apperrors.ErrInsufficientBalance)
		}
		return nil
	}

	debit := `
		UPDATE microloan.balances SET amount = amount - $2::numeric
		WHERE account = $1 AND amount >= $2::numeric`
	res, err := t.tx.ExecContext(ctx, debit, from, amount(value))
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, mapPQError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit %s: %w", from, err)
	}
	if n == 0 {
		return fmt.Errorf("transfer %d from %s: %w", value, from, apperrors.ErrInsufficientBalance)
	}

	credit := `
		INSERT INTO microloan.balances (account, amount)
		VALUES ($1, $2::numeric)
		ON CONFLICT (account) DO UPDATE SET amount = microloan.balances.amount + EXCLUDED.amount`
	if _, err := t.tx.ExecContext(ctx, credit, to, amount(value)); err != nil {
		return fmt.Errorf("failed to credit %s: %w", to, mapPQError(err))
	}
	return nil
}

func (t *pgTx) TransferFrom(ctx context.Context, spender, owner, to string, value uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	spend := `
		UPDATE microloan.allowances SET amount = amount - $3::numeric
		WHERE owner = $1 AND spender = $2 AND amount >= $3::numeric`
	res, err := t.tx.ExecContext(ctx, spend, owner, spender, amount(value))
	if err != nil {
		return fmt.Errorf("failed to spend allowance of %s: %w", owner, mapPQError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to spend allowance of %s: %w", owner, err)
	}
	if n == 0 && value > 0 {
		return fmt.Errorf("spend %d of %s allowance: %w", value, owner, apperrors.ErrInsufficientAllowance)
	}
	return t.Transfer(ctx, owner, to, value)
}

// ==================== Loan book ====================

func (t *pgTx) NextLoanID(ctx context.Context) (uint64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	var id uint64
	query := `UPDATE microloan.loan_counter SET value = value + 1 WHERE id = 1 RETURNING value`
	if err := t.tx.QueryRowContext(ctx, query).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to allocate loan id: %w", mapPQError(err))
	}
	return id, nil
}

func (t *pgTx) InsertLoan(ctx context.Context, loan *models.Loan) error {
	if err := t.writable(); err != nil {
		return err
	}
	query := `
		INSERT INTO microloan.loans (id, lender, share_amount, total_amount, is_active, signature, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5, $6, $7)`
	_, err := t.tx.ExecContext(ctx, query,
		int64(loan.ID), loan.Lender, amount(loan.ShareAmount), amount(loan.TotalAmount),
		loan.IsActive, loan.Signature, loan.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", mapPQError(err))
	}

	stmt, err := t.tx.PrepareContext(ctx, `
		INSERT INTO microloan.loan_borrowers (loan_id, slot, borrower)
		VALUES ($1, $2, $3)`)
	if err != nil {
		return fmt.Errorf("failed to prepare borrower insert: %w", mapPQError(err))
	}
	defer stmt.Close()

	for slot, borrower := range loan.Borrowers {
		if _, err := stmt.ExecContext(ctx, int64(loan.ID), slot, borrower); err != nil {
			return fmt.Errorf("failed to add borrower %s: %w", borrower, mapPQError(err))
		}
	}
	return nil
}

const loanColumns = `id, lender, share_amount, total_amount, is_active, signature, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLoan(row rowScanner) (models.Loan, error) {
	var loan models.Loan
	err := row.Scan(&loan.ID, &loan.Lender, &loan.ShareAmount, &loan.TotalAmount,
		&loan.IsActive, &loan.Signature, &loan.CreatedAt)
	return loan, err
}

func (t *pgTx) GetLoan(ctx context.Context, loanID uint64) (*models.Loan, error) {
	if loanID == 0 {
		return nil, apperrors.ErrLoanNotFound
	}
	query := `SELECT ` + loanColumns + ` FROM microloan.loans WHERE id = $1`
	loan, err := scanLoan(t.tx.QueryRowContext(ctx, query, int64(loanID)))
	if err == sql.ErrNoRows {
		return nil, apperrors.ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find loan: %w", mapPQError(err))
	}

	rows, err := t.tx.QueryContext(ctx,
		`SELECT borrower FROM microloan.loan_borrowers WHERE loan_id = $1 ORDER BY slot`, int64(loanID))
	if err != nil {
		return nil, fmt.Errorf("failed to find borrowers: %w", mapPQError(err))
	}
	defer rows.Close()

	for rows.Next() {
		var borrower string
		if err := rows.Scan(&borrower); err != nil {
			return nil, fmt.Errorf("failed to scan borrower: %w", err)
		}
		loan.Borrowers = append(loan.Borrowers, borrower)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read borrowers: %w", err)
	}
	return &loan, nil
}

func (t *pgTx) CountLoans(ctx context.Context) (uint64, error) {
	var count uint64
	query := `SELECT value FROM microloan.loan_counter WHERE id = 1`
	if err := t.tx.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count loans: %w", mapPQError(err))
	}
	return count, nil
}

func (t *pgTx) ListLoans(ctx context.Context, opts ListOpts) ([]models.Loan, error) {
	limit := sql.NullInt64{Int64: int64(opts.Limit), Valid: opts.Limit > 0}
	query := `
		SELECT ` + loanColumns + `
		FROM microloan.loans l
		WHERE $1 = '' OR l.lender = $1 OR EXISTS (
			SELECT 1 FROM microloan.loan_borrowers b WHERE b.loan_id = l.id AND b.borrower = $1)
		ORDER BY l.id
		LIMIT $2 OFFSET $3`
	rows, err := t.tx.QueryContext(ctx, query, opts.Account, limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", mapPQError(err))
	}

	loans := make([]models.Loan, 0)
	index := make(map[uint64]int)
	ids := make([]int64, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		index[loan.ID] = len(loans)
		ids = append(ids, int64(loan.ID))
		loans = append(loans, loan)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read loans: %w", err)
	}
	if len(loans) == 0 {
		return loans, nil
	}

	brows, err := t.tx.QueryContext(ctx, `
		SELECT loan_id, borrower FROM microloan.loan_borrowers
		WHERE loan_id = ANY($1)
		ORDER BY loan_id, slot`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to list borrowers: %w", mapPQError(err))
	}
	defer brows.Close()

	for brows.Next() {
		var (
			loanID   uint64
			borrower string
		)
		if err := brows.Scan(&loanID, &borrower); err != nil {
			return nil, fmt.Errorf("failed to scan borrower: %w", err)
		}
		i := index[loanID]
		loans[i].Borrowers = append(loans[i].Borrowers, borrower)
	}
	if err := brows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read borrowers: %w", err)
	}
	return loans, nil
}

func (t *pgTx) Slots(ctx context.Context, loanID uint64) ([]models.RepaymentSlot, error) {
	query := `
		SELECT loan_id, slot, borrower, has_repaid, repayment_amount, repaid_at
		FROM microloan.loan_borrowers
		WHERE loan_id = $1
		ORDER BY slot`
	rows, err := t.tx.QueryContext(ctx, query, int64(loanID))
	if err != nil {
		return nil, fmt.Errorf("failed to find repayment slots: %w", mapPQError(err))
	}
	defer rows.Close()

	var slots []models.RepaymentSlot
	for rows.Next() {
		var (
			s        models.RepaymentSlot
			repaidAt sql.NullTime
		)
		if err := rows.Scan(&s.LoanID, &s.Slot, &s.Borrower, &s.HasRepaid, &s.RepaymentAmount, &repaidAt); err != nil {
			return nil, fmt.Errorf("failed to scan repayment slot: %w", err)
		}
		if repaidAt.Valid {
			at := repaidAt.Time
			s.RepaidAt = &at
		}
		slots = append(slots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repayment slots: %w", err)
	}
	// every loan has at least one slot
	if len(slots) == 0 {
		return nil, apperrors.ErrLoanNotFound
	}
	return slots, nil
}

func (t *pgTx) MarkRepaid(ctx context.Context, loanID uint64, slot int, value uint64, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	query := `
		UPDATE microloan.loan_borrowers
		SET has_repaid = TRUE, repayment_amount = $3::numeric, repaid_at = $4
		WHERE loan_id = $1 AND slot = $2 AND has_repaid = FALSE`
	res, err := t.tx.ExecContext(ctx, query, int64(loanID), slot, amount(value), at)
	if err != nil {
		return fmt.Errorf("failed to record repayment: %w", mapPQError(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to record repayment: %w", err)
	}
	if n == 0 {
		return apperrors.ErrAlreadyRepaid
	}
	return nil
}

func (t *pgTx) Outstanding(ctx context.Context) ([]models.OutstandingLoan, error) {
	query := `
		SELECT l.id, l.lender, l.share_amount, b.borrower
		FROM microloan.loans l
		JOIN microloan.loan_borrowers b ON b.loan_id = l.id
		WHERE b.has_repaid = FALSE
		ORDER BY l.id, b.slot`
	rows, err := t.tx.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list outstanding loans: %w", mapPQError(err))
	}
	defer rows.Close()

	result := make([]models.OutstandingLoan, 0)
	for rows.Next() {
		var (
			loanID   uint64
			lender   string
			share    uint64
			borrower string
		)
		if err := rows.Scan(&loanID, &lender, &share, &borrower); err != nil {
			return nil, fmt.Errorf("failed to scan outstanding slot: %w", err)
		}
		if n := len(result); n == 0 || result[n-1].LoanID != loanID {
			result = append(result, models.OutstandingLoan{LoanID: loanID, Lender: lender})
		}
		o := &result[len(result)-1]
		o.UnpaidSlots++
		o.UnpaidAmount += share
		o.Debtors = append(o.Debtors, borrower)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read outstanding slots: %w", err)
	}
	return result, nil
}
