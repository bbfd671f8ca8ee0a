package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bank_system/internal/domain"     // Importing domain models
	"bank_system/internal/repository" // Storage contracts

	"github.com/shopspring/decimal" // Decimal balances
	"gorm.io/gorm"                  // GORM ORM library
)

// Store implements repository.Store on top of gorm
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open gorm connection
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Users() repository.UserStore             { return userStore{s.db} }
func (s *Store) Accounts() repository.AccountStore       { return accountStore{s.db} }
func (s *Store) Transactions() repository.TransactionLog { return transactionLog{s.db} }

// WithinTx runs fn inside a database transaction. Nested calls use savepoints.
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

type userStore struct{ db *gorm.DB }

func (u userStore) Create(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email) // Stored lowercased so the unique index is case-insensitive
	if err := u.db.WithContext(ctx).Create(user).Error; err != nil {
		if isDuplicateKey(err) {
			return domain.ErrEmailTaken
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (u userStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := u.db.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &user, nil
}

func (u userStore) GetByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	err := u.db.WithContext(ctx).First(&user, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &user, nil
}

type accountStore struct{ db *gorm.DB }

func (a accountStore) Create(ctx context.Context, account *domain.Account) error {
	if err := a.db.WithContext(ctx).Create(account).Error; err != nil {
		return fmt.Errorf("create account: %w", err)
	}
	return nil
}

func (a accountStore) GetByID(ctx context.Context, id uint) (*domain.Account, error) {
	var account domain.Account
	err := a.db.WithContext(ctx).First(&account, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &account, nil
}

func (a accountStore) ListByOwner(ctx context.Context, userID uint) ([]domain.Account, error) {
	accounts := make([]domain.Account, 0)
	if err := a.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&accounts).Error; err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return accounts, nil
}

// IncrementBalance issues UPDATE accounts SET balance = balance + ? WHERE id = ? AND balance <= ?
// so a credit never overflows the column
func (a accountStore) IncrementBalance(ctx context.Context, id uint, amount decimal.Decimal) (*domain.Account, error) {
	res := a.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND balance <= ?", id, domain.CreditHeadroom(amount)).
		Update("balance", gorm.Expr("balance + ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("increment balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the account is missing or the credit would pass MaxBalance
		if _, err := a.GetByID(ctx, id); err != nil {
			return nil, err
		}
		return nil, domain.ErrBalanceLimit
	}
	return a.GetByID(ctx, id)
}

// DecrementBalance issues UPDATE accounts SET balance = balance - ? WHERE id = ? AND balance >= ?
// and decides between success and a refused debit on the affected row count
func (a accountStore) DecrementBalance(ctx context.Context, id uint, amount decimal.Decimal) (*domain.Account, error) {
	res := a.db.WithContext(ctx).Model(&domain.Account{}).
		Where("id = ? AND balance >= ?", id, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return nil, fmt.Errorf("decrement balance: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		// Either the account is missing or the balance did not cover the amount
		account, err := a.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, &domain.InsufficientFundsError{AccountID: id, Requested: amount, Available: account.Balance}
	}
	return a.GetByID(ctx, id)
}

type transactionLog struct{ db *gorm.DB }

func (l transactionLog) Append(ctx context.Context, tx *domain.Transaction) error {
	if tx.Timestamp.IsZero() {
		tx.Timestamp = time.Now().UTC()
	}
	if err := l.db.WithContext(ctx).Create(tx).Error; err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}
	return nil
}

func (l transactionLog) ListByAccount(ctx context.Context, accountID uint, page repository.Page) ([]domain.Transaction, int64, error) {
	var total int64
	if err := l.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("account_id = ?", accountID).
		Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	query := l.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Order("timestamp desc").
		Order("id desc")
	if !page.Unbounded() {
		query = query.Offset(page.Offset()).Limit(page.Size)
	}
	transactions := make([]domain.Transaction, 0)
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	return transactions, total, nil
}
