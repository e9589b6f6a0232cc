package repository

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/models"
)

type allowanceKey struct {
	owner   string
	spender string
}

// MemoryStore keeps the ledger and the loan book in process memory.
// Update holds the write lock for the whole unit of work and records an undo
// action for every mutation; a failed unit replays the journal in reverse.
type MemoryStore struct {
	mu sync.RWMutex

	balances   map[string]uint64
	allowances map[allowanceKey]uint64

	// loans is append-only: loan ID n lives at index n-1
	loans   []models.Loan
	slots   [][]models.RepaymentSlot
	counter uint64
}

// NewMemoryStore initializes an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		balances:   make(map[string]uint64),
		allowances: make(map[allowanceKey]uint64),
	}
}

// Mint credits an account directly. Used to provision balances in tests and dev setups.
func (s *MemoryStore) Mint(_ context.Context, account string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bal := s.balances[account]
	if bal > math.MaxUint64-amount {
		return apperrors.ErrBalanceOverflow
	}
	s.balances[account] = bal + amount
	return nil
}

// Update runs fn as a single unit of work
func (s *MemoryStore) Update(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}
	committed = true
	return nil
}

// View runs fn under the read lock; mutations fail with apperrors.ErrReadOnly
func (s *MemoryStore) View(ctx context.Context, fn func(Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memTx{store: s, readOnly: true})
}

// Ping always succeeds
func (s *MemoryStore) Ping(_ context.Context) error { return nil }

// Close is a no-op
func (s *MemoryStore) Close() error { return nil }

type memTx struct {
	store    *MemoryStore
	readOnly bool
	undo     []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) writable() error {
	if t.readOnly {
		return apperrors.ErrReadOnly
	}
	return nil
}

func (t *memTx) setBalance(account string, amount uint64) {
	old, existed := t.store.balances[account]
	t.store.balances[account] = amount
	t.undo = append(t.undo, func() {
		if existed {
			t.store.balances[account] = old
		} else {
			delete(t.store.balances, account)
		}
	})
}

func (t *memTx) setAllowance(key allowanceKey, amount uint64) {
	old, existed := t.store.allowances[key]
	t.store.allowances[key] = amount
	t.undo = append(t.undo, func() {
		if existed {
			t.store.allowances[key] = old
		} else {
			delete(t.store.allowances, key)
		}
	})
}

// ==================== Value ledger ====================

func (t *memTx) BalanceOf(_ context.Context, account string) (uint64, error) {
	return t.store.balances[account], nil
}

func (t *memTx) Allowance(_ context.Context, owner, spender string) (uint64, error) {
	return t.store.allowances[allowanceKey{owner, spender}], nil
}

func (t *memTx) Approve(_ context.Context, owner, spender string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	t.setAllowance(allowanceKey{owner, spender}, amount)
	return nil
}

func (t *memTx) Transfer(_ context.Context, from, to string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	fromBal := t.store.balances[from]
	if fromBal < amount {
		return fmt.Errorf("transfer %d from %s: %w", amount, from, apperrors.ErrInsufficientBalance)
	}
	if from == to {
		return nil
	}
	toBal := t.store.balances[to]
	if toBal > math.MaxUint64-amount {
		return fmt.Errorf("transfer %d to %s: %w", amount, to, apperrors.ErrBalanceOverflow)
	}

	t.setBalance(from, fromBal-amount)
	t.setBalance(to, toBal+amount)
	return nil
}

func (t *memTx) TransferFrom(ctx context.Context, spender, owner, to string, amount uint64) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := allowanceKey{owner, spender}
	allowed := t.store.allowances[key]
	if allowed < amount {
		return fmt.Errorf("spend %d of %s allowance: %w", amount, owner, apperrors.ErrInsufficientAllowance)
	}
	if err := t.Transfer(ctx, owner, to, amount); err != nil {
		return err
	}
	t.setAllowance(key, allowed-amount)
	return nil
}

// ==================== Loan book ====================

func (t *memTx) NextLoanID(_ context.Context) (uint64, error) {
	if err := t.writable(); err != nil {
		return 0, err
	}
	t.store.counter++
	t.undo = append(t.undo, func() { t.store.counter-- })
	return t.store.counter, nil
}

func (t *memTx) InsertLoan(_ context.Context, loan *models.Loan) error {
	if err := t.writable(); err != nil {
		return err
	}
	if loan.ID != uint64(len(t.store.loans))+1 {
		return fmt.Errorf("insert loan %d: expected id %d", loan.ID, len(t.store.loans)+1)
	}

	stored := *loan
	stored.Borrowers = append([]string(nil), loan.Borrowers...)
	slots := make([]models.RepaymentSlot, len(loan.Borrowers))
	for i, b := range loan.Borrowers {
		slots[i] = models.RepaymentSlot{LoanID: loan.ID, Slot: i, Borrower: b}
	}

	t.store.loans = append(t.store.loans, stored)
	t.store.slots = append(t.store.slots, slots)
	t.undo = append(t.undo, func() {
		t.store.loans = t.store.loans[:len(t.store.loans)-1]
		t.store.slots = t.store.slots[:len(t.store.slots)-1]
	})
	return nil
}

func (t *memTx) index(loanID uint64) (int, error) {
	if loanID == 0 || loanID > uint64(len(t.store.loans)) {
		return 0, apperrors.ErrLoanNotFound
	}
	return int(loanID - 1), nil
}

func (t *memTx) GetLoan(_ context.Context, loanID uint64) (*models.Loan, error) {
	i, err := t.index(loanID)
	if err != nil {
		return nil, err
	}
	loan := t.store.loans[i]
	loan.Borrowers = append([]string(nil), loan.Borrowers...)
	return &loan, nil
}

func (t *memTx) CountLoans(_ context.Context) (uint64, error) {
	return uint64(len(t.store.loans)), nil
}

func (t *memTx) ListLoans(_ context.Context, opts ListOpts) ([]models.Loan, error) {
	result := make([]models.Loan, 0)
	skipped := 0
	for i := range t.store.loans {
		loan := t.store.loans[i]
		if opts.Account != "" && loan.Lender != opts.Account && !loan.HasBorrower(opts.Account) {
			continue
		}
		if skipped < opts.Offset {
			skipped++
			continue
		}
		if opts.Limit > 0 && len(result) >= opts.Limit {
			break
		}
		loan.Borrowers = append([]string(nil), loan.Borrowers...)
		result = append(result, loan)
	}
	return result, nil
}

func (t *memTx) Slots(_ context.Context, loanID uint64) ([]models.RepaymentSlot, error) {
	i, err := t.index(loanID)
	if err != nil {
		return nil, err
	}
	return append([]models.RepaymentSlot(nil), t.store.slots[i]...), nil
}

func (t *memTx) MarkRepaid(_ context.Context, loanID uint64, slot int, amount uint64, at time.Time) error {
	if err := t.writable(); err != nil {
		return err
	}
	i, err := t.index(loanID)
	if err != nil {
		return err
	}
	slots := t.store.slots[i]
	if slot < 0 || slot >= len(slots) {
		return apperrors.Invalid("slot", fmt.Sprintf("loan %d has no slot %d", loanID, slot))
	}
	if slots[slot].HasRepaid {
		return apperrors.ErrAlreadyRepaid
	}

	old := slots[slot]
	paidAt := at
	slots[slot].HasRepaid = true
	slots[slot].RepaymentAmount = amount
	slots[slot].RepaidAt = &paidAt
	t.undo = append(t.undo, func() { slots[slot] = old })
	return nil
}

func (t *memTx) Outstanding(_ context.Context) ([]models.OutstandingLoan, error) {
	result := make([]models.OutstandingLoan, 0)
	for i, loan := range t.store.loans {
		var o *models.OutstandingLoan
		for _, s := range t.store.slots[i] {
			if s.HasRepaid {
				continue
			}
			if o == nil {
				o = &models.OutstandingLoan{LoanID: loan.ID, Lender: loan.Lender}
			}
			o.UnpaidSlots++
			o.UnpaidAmount += loan.ShareAmount
			o.Debtors = append(o.Debtors, s.Borrower)
		}
		if o != nil {
			result = append(result, *o)
		}
	}
	return result, nil
}
