package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bank_system/internal/cache"
	"bank_system/internal/domain"
	"bank_system/internal/memstore"
	"bank_system/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func openAccount(t *testing.T, store repository.Store, userID uint, balance string) *domain.Account {
	t.Helper()
	acc := &domain.Account{UserID: userID, Balance: dec(balance)}
	require.NoError(t, store.Accounts().Create(context.Background(), acc))
	return acc
}

func balanceOf(t *testing.T, store repository.Store, id uint) decimal.Decimal {
	t.Helper()
	acc, err := store.Accounts().GetByID(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func historyOf(t *testing.T, store repository.Store, id uint) []domain.Transaction {
	t.Helper()
	txs, _, err := store.Transactions().ListByAccount(context.Background(), id, repository.Page{})
	require.NoError(t, err)
	return txs
}

func TestLedgerScenario(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store)
	acc := openAccount(t, store, 1, "1000")

	balance, err := ledger.Deposit(ctx, acc.ID, dec("500"), "")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("1500")), balance.String())
	txs := historyOf(t, store, acc.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, domain.KindDeposit, txs[0].Kind)
	assert.True(t, txs[0].Amount.Equal(dec("500")))
	assert.Equal(t, "Deposit", txs[0].Description)

	_, err = ledger.Withdraw(ctx, acc.ID, dec("2000"), "")
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
	var insufficient *domain.InsufficientFundsError
	require.True(t, errors.As(err, &insufficient))
	assert.True(t, insufficient.Available.Equal(dec("1500")))
	assert.True(t, balanceOf(t, store, acc.ID).Equal(dec("1500")))
	assert.Len(t, historyOf(t, store, acc.ID), 1)

	balance, err = ledger.Withdraw(ctx, acc.ID, dec("300"), "Rent")
	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("1200")), balance.String())

	txs = historyOf(t, store, acc.ID)
	require.Len(t, txs, 2)
	assert.Equal(t, domain.KindWithdraw, txs[0].Kind)
	assert.Equal(t, "Rent", txs[0].Description)
	assert.True(t, txs[0].Amount.Equal(dec("300")))
}

func TestLedgerRejectsInvalidAmounts(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store)
	acc := openAccount(t, store, 1, "100")

	for _, amount := range []string{"0", "-5", "0.001"} {
		_, err := ledger.Deposit(ctx, acc.ID, dec(amount), "")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
		_, err = ledger.Withdraw(ctx, acc.ID, dec(amount), "")
		assert.ErrorIs(t, err, domain.ErrInvalidAmount, amount)
	}
	assert.True(t, balanceOf(t, store, acc.ID).Equal(dec("100")))
	assert.Empty(t, historyOf(t, store, acc.ID))
}

func TestDepositCannotPassBalanceLimit(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store)
	acc := openAccount(t, store, 1, domain.MaxBalance.Sub(dec("1")).String())

	_, err := ledger.Deposit(ctx, acc.ID, dec("2"), "")
	assert.ErrorIs(t, err, domain.ErrBalanceLimit)
	assert.Empty(t, historyOf(t, store, acc.ID))

	balance, err := ledger.Deposit(ctx, acc.ID, dec("1"), "")
	require.NoError(t, err)
	assert.True(t, balance.Equal(domain.MaxBalance))

	_, err = ledger.Deposit(ctx, acc.ID, dec("1e25"), "")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
}

func TestLedgerUnknownAccount(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger(memstore.New())

	_, err := ledger.Deposit(ctx, 404, dec("10"), "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
	_, err = ledger.Withdraw(ctx, 404, dec("10"), "")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestWithdrawDefaultDescription(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	acc := openAccount(t, store, 1, "50")

	_, err := NewLedger(store).Withdraw(ctx, acc.ID, dec("20.50"), "")
	require.NoError(t, err)
	txs := historyOf(t, store, acc.ID)
	require.Len(t, txs, 1)
	assert.Equal(t, "Withdrawal", txs[0].Description)
	assert.True(t, balanceOf(t, store, acc.ID).Equal(dec("29.50")))
}

// brokenLogStore fails every transaction append
type brokenLogStore struct {
	repository.Store
}

type brokenLog struct{}

var errAppend = errors.New("append failed")

func (brokenLog) Append(context.Context, *domain.Transaction) error { return errAppend }
func (brokenLog) ListByAccount(context.Context, uint, repository.Page) ([]domain.Transaction, int64, error) {
	return nil, 0, nil
}

func (s brokenLogStore) Transactions() repository.TransactionLog { return brokenLog{} }

func (s brokenLogStore) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(brokenLogStore{tx})
	})
}

func TestFailedAppendRollsBackBalance(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	acc := openAccount(t, store, 1, "100")
	ledger := NewLedger(brokenLogStore{store})

	_, err := ledger.Deposit(ctx, acc.ID, dec("25"), "")
	assert.ErrorIs(t, err, errAppend)
	_, err = ledger.Withdraw(ctx, acc.ID, dec("25"), "")
	assert.ErrorIs(t, err, errAppend)

	assert.True(t, balanceOf(t, store, acc.ID).Equal(dec("100")))
}

func TestAuthorize(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store)
	acc := openAccount(t, store, 1, "0")

	got, err := ledger.Authorize(ctx, 1, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, acc.ID, got.ID)

	_, err = ledger.Authorize(ctx, 2, acc.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = ledger.Authorize(ctx, 1, 404)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestCachedListingsAreInvalidated(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store, WithCache(cache.NewMemory(), 0))
	acc := openAccount(t, store, 1, "10")

	accounts, err := ledger.AccountsFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, accounts, 1)

	first, err := ledger.History(ctx, acc.ID, repository.NewPage(1, 20))
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Zero(t, first.Total)

	again, err := ledger.History(ctx, acc.ID, repository.NewPage(1, 20))
	require.NoError(t, err)
	assert.True(t, again.Cached)

	_, err = ledger.Deposit(ctx, acc.ID, dec("5"), "")
	require.NoError(t, err)

	accounts, err = ledger.AccountsFor(ctx, 1)
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.True(t, accounts[0].Balance.Equal(dec("15")), accounts[0].Balance.String())

	fresh, err := ledger.History(ctx, acc.ID, repository.NewPage(1, 20))
	require.NoError(t, err)
	assert.False(t, fresh.Cached)
	assert.Equal(t, int64(1), fresh.Total)
	assert.Equal(t, 1, fresh.TotalPages)
	assert.Equal(t, 20, fresh.PageSize)
}

func TestHistoryPaging(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store)
	acc := openAccount(t, store, 1, "0")
	for i := 0; i < 5; i++ {
		_, err := ledger.Deposit(ctx, acc.ID, dec("1"), "")
		require.NoError(t, err)
	}

	page, err := ledger.History(ctx, acc.ID, repository.NewPage(3, 2))
	require.NoError(t, err)
	assert.Len(t, page.Transactions, 1)
	assert.Equal(t, int64(5), page.Total)
	assert.Equal(t, 3, page.TotalPages)

	all, err := ledger.History(ctx, acc.ID, repository.Page{})
	require.NoError(t, err)
	assert.Len(t, all.Transactions, 5)
	assert.Equal(t, 1, all.TotalPages)
}

func TestConcurrentLedgerWithdrawals(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	ledger := NewLedger(store)
	acc := openAccount(t, store, 1, "100")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, refused := 0, 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ledger.Withdraw(ctx, acc.ID, dec("10"), "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if errors.Is(err, domain.ErrInsufficientFunds) {
				refused++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 15, refused)
	assert.True(t, balanceOf(t, store, acc.ID).IsZero())
	assert.Len(t, historyOf(t, store, acc.ID), 10)
}
