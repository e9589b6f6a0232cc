package repository

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/Dan9191/microloan/internal/apperrors"
	"github.com/Dan9191/microloan/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFundedStore(t *testing.T, balances map[string]uint64) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	for account, amount := range balances {
		require.NoError(t, s.Mint(context.Background(), account, amount))
	}
	return s
}

func balanceOf(t *testing.T, s Store, account string) uint64 {
	t.Helper()
	var bal uint64
	require.NoError(t, s.View(context.Background(), func(tx Tx) error {
		var err error
		bal, err = tx.BalanceOf(context.Background(), account)
		return err
	}))
	return bal
}

func TestMemoryStore_Transfer(t *testing.T) {
	ctx := context.Background()

	t.Run("moves funds", func(t *testing.T) {
		s := newFundedStore(t, map[string]uint64{"0xaa": 100})
		err := s.Update(ctx, func(tx Tx) error {
			return tx.Transfer(ctx, "0xaa", "0xbb", 40)
		})
		require.NoError(t, err)
		assert.Equal(t, uint64(60), balanceOf(t, s, "0xaa"))
		assert.Equal(t, uint64(40), balanceOf(t, s, "0xbb"))
	})

	t.Run("insufficient balance", func(t *testing.T) {
		s := newFundedStore(t, map[string]uint64{"0xaa": 10})
		err := s.Update(ctx, func(tx Tx) error {
			return tx.Transfer(ctx, "0xaa", "0xbb", 11)
		})
		assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
		assert.Equal(t, uint64(10), balanceOf(t, s, "0xaa"))
	})

	t.Run("overflow leaves both sides untouched", func(t *testing.T) {
		s := newFundedStore(t, map[string]uint64{"0xaa": 10, "0xbb": math.MaxUint64})
		err := s.Update(ctx, func(tx Tx) error {
			return tx.Transfer(ctx, "0xaa", "0xbb", 1)
		})
		assert.ErrorIs(t, err, apperrors.ErrBalanceOverflow)
		assert.Equal(t, uint64(10), balanceOf(t, s, "0xaa"))
	})
}

func TestMemoryStore_TransferFrom(t *testing.T) {
	ctx := context.Background()
	s := newFundedStore(t, map[string]uint64{"0xaa": 100})

	err := s.Update(ctx, func(tx Tx) error {
		return tx.TransferFrom(ctx, "0xsvc", "0xaa", "0xbb", 10)
	})
	assert.ErrorIs(t, err, apperrors.ErrInsufficientAllowance)

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.Approve(ctx, "0xaa", "0xsvc", 30)
	}))
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.TransferFrom(ctx, "0xsvc", "0xaa", "0xbb", 25)
	}))

	var left uint64
	require.NoError(t, s.View(ctx, func(tx Tx) error {
		var err error
		left, err = tx.Allowance(ctx, "0xaa", "0xsvc")
		return err
	}))
	assert.Equal(t, uint64(5), left)
	assert.Equal(t, uint64(75), balanceOf(t, s, "0xaa"))
	assert.Equal(t, uint64(25), balanceOf(t, s, "0xbb"))
}

func TestMemoryStore_UpdateRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newFundedStore(t, map[string]uint64{"0xaa": 100})
	boom := errors.New("boom")

	err := s.Update(ctx, func(tx Tx) error {
		if err := tx.Approve(ctx, "0xaa", "0xsvc", 50); err != nil {
			return err
		}
		if err := tx.Transfer(ctx, "0xaa", "0xbb", 60); err != nil {
			return err
		}
		id, err := tx.NextLoanID(ctx)
		if err != nil {
			return err
		}
		if err := tx.InsertLoan(ctx, &models.Loan{ID: id, Lender: "0xaa", Borrowers: []string{"0xbb"}, ShareAmount: 60, TotalAmount: 60}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, uint64(100), balanceOf(t, s, "0xaa"))
	assert.Equal(t, uint64(0), balanceOf(t, s, "0xbb"))
	require.NoError(t, s.View(ctx, func(tx Tx) error {
		count, err := tx.CountLoans(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		allowed, err := tx.Allowance(ctx, "0xaa", "0xsvc")
		require.NoError(t, err)
		assert.Zero(t, allowed)
		return nil
	}))

	// the rolled back id is handed out again
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		id, err := tx.NextLoanID(ctx)
		assert.Equal(t, uint64(1), id)
		return err
	}))
}

func TestMemoryStore_ViewIsReadOnly(t *testing.T) {
	ctx := context.Background()
	s := newFundedStore(t, map[string]uint64{"0xaa": 100})

	err := s.View(ctx, func(tx Tx) error {
		return tx.Transfer(ctx, "0xaa", "0xbb", 1)
	})
	assert.ErrorIs(t, err, apperrors.ErrReadOnly)
}

func insertLoan(t *testing.T, s *MemoryStore, lender string, borrowers []string, share uint64) uint64 {
	t.Helper()
	ctx := context.Background()
	var id uint64
	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		var err error
		id, err = tx.NextLoanID(ctx)
		if err != nil {
			return err
		}
		return tx.InsertLoan(ctx, &models.Loan{
			ID: id, Lender: lender, Borrowers: borrowers,
			ShareAmount: share, TotalAmount: share * uint64(len(borrowers)), IsActive: true,
		})
	}))
	return id
}

func TestMemoryStore_LoanBook(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first := insertLoan(t, s, "0xl1", []string{"0xaa", "0xbb"}, 50)
	second := insertLoan(t, s, "0xl2", []string{"0xcc", "0xcc"}, 10)
	assert.Equal(t, uint64(1), first)
	assert.Equal(t, uint64(2), second)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		_, err := tx.GetLoan(ctx, 0)
		assert.ErrorIs(t, err, apperrors.ErrLoanNotFound)
		_, err = tx.GetLoan(ctx, 3)
		assert.ErrorIs(t, err, apperrors.ErrLoanNotFound)

		loan, err := tx.GetLoan(ctx, second)
		require.NoError(t, err)
		assert.Equal(t, []string{"0xcc", "0xcc"}, loan.Borrowers)

		slots, err := tx.Slots(ctx, second)
		require.NoError(t, err)
		assert.Len(t, slots, 2)

		mine, err := tx.ListLoans(ctx, ListOpts{Account: "0xbb"})
		require.NoError(t, err)
		require.Len(t, mine, 1)
		assert.Equal(t, first, mine[0].ID)

		page, err := tx.ListLoans(ctx, ListOpts{Offset: 1, Limit: 5})
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, second, page[0].ID)
		return nil
	}))
}

func TestMemoryStore_MarkRepaid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := insertLoan(t, s, "0xl1", []string{"0xaa", "0xbb"}, 50)
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, s.Update(ctx, func(tx Tx) error {
		return tx.MarkRepaid(ctx, id, 1, 50, at)
	}))
	err := s.Update(ctx, func(tx Tx) error {
		return tx.MarkRepaid(ctx, id, 1, 50, at)
	})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyRepaid)

	err = s.Update(ctx, func(tx Tx) error {
		return tx.MarkRepaid(ctx, id, 2, 50, at)
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	require.NoError(t, s.View(ctx, func(tx Tx) error {
		slots, err := tx.Slots(ctx, id)
		require.NoError(t, err)
		assert.False(t, slots[0].HasRepaid)
		assert.True(t, slots[1].HasRepaid)
		assert.Equal(t, uint64(50), slots[1].RepaymentAmount)
		require.NotNil(t, slots[1].RepaidAt)
		assert.True(t, at.Equal(*slots[1].RepaidAt))

		out, err := tx.Outstanding(ctx)
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.Equal(t, models.OutstandingLoan{
			LoanID: id, Lender: "0xl1", UnpaidSlots: 1, UnpaidAmount: 50, Debtors: []string{"0xaa"},
		}, out[0])
		return nil
	}))
}

func TestMemoryStore_ConcurrentMarkRepaid(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	id := insertLoan(t, s, "0xl1", []string{"0xaa"}, 50)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.Update(ctx, func(tx Tx) error {
				return tx.MarkRepaid(ctx, id, 0, 50, time.Now())
			})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
}
