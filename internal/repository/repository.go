// Package repository defines the storage contracts shared by the SQL and
// in-memory backends.
package repository

import (
	"context"

	"bank_system/internal/domain"

	"github.com/shopspring/decimal"
)

// UserStore persists registered users
type UserStore interface {
	// Create inserts the user and sets its ID. Returns domain.ErrEmailTaken on a duplicate email.
	Create(ctx context.Context, user *domain.User) error
	// GetByEmail returns domain.ErrUserNotFound when no user has that email.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByID returns domain.ErrUserNotFound when the user does not exist.
	GetByID(ctx context.Context, id uint) (*domain.User, error)
}

// AccountStore persists accounts and their balances
type AccountStore interface {
	// Create inserts the account and sets its ID.
	Create(ctx context.Context, account *domain.Account) error
	// GetByID returns domain.ErrAccountNotFound when the account does not exist.
	GetByID(ctx context.Context, id uint) (*domain.Account, error)
	// ListByOwner returns the accounts of a user ordered by ID.
	ListByOwner(ctx context.Context, userID uint) ([]domain.Account, error)
	// IncrementBalance adds amount to the balance in a single statement and
	// returns the updated account. A credit that would pass domain.MaxBalance
	// returns domain.ErrBalanceLimit.
	IncrementBalance(ctx context.Context, id uint, amount decimal.Decimal) (*domain.Account, error)
	// DecrementBalance subtracts amount only if the balance covers it. A refused
	// debit returns *domain.InsufficientFundsError and leaves the balance untouched.
	DecrementBalance(ctx context.Context, id uint, amount decimal.Decimal) (*domain.Account, error)
}

// TransactionLog is the append-only record of ledger operations
type TransactionLog interface {
	// Append inserts the entry and sets its ID. A zero Timestamp is set to now.
	Append(ctx context.Context, tx *domain.Transaction) error
	// ListByAccount returns the entries of an account newest first, along with
	// the total number of entries for that account.
	ListByAccount(ctx context.Context, accountID uint, page Page) ([]domain.Transaction, int64, error)
}

// Store groups the stores of one backend
type Store interface {
	Users() UserStore             // Registered users
	Accounts() AccountStore       // Accounts and balances
	Transactions() TransactionLog // Ledger history
	// WithinTx runs fn against a Store bound to a single transaction. Any error
	// returned by fn rolls back every write made through that Store.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
