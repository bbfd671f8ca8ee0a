// Package service holds the ledger and identity operations behind the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bank_system/internal/cache"      // Response cache
	"bank_system/internal/domain"     // Importing domain models
	"bank_system/internal/repository" // Storage contracts

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus" // Logging library
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// DefaultCacheTTL is how long listings stay cached unless configured otherwise
const DefaultCacheTTL = 60 * time.Second

// TransactionPage is one page of an account's history, newest first
type TransactionPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page, 0 when unpaged
	PageSize     int                  `json:"page_size"`    // Page size, 0 when unpaged
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
	Cached       bool                 `json:"-"`            // Served from the cache
}

// Ledger applies deposits and withdrawals. Every operation changes the balance
// and appends its transaction in one unit of work.
type Ledger struct {
	store    repository.Store
	cache    cache.Cache
	cacheTTL time.Duration
	tracer   trace.Tracer
	metrics  *ledgerMetrics
}

// LedgerOption configures a Ledger
type LedgerOption func(*Ledger)

// WithCache caches account lists and history pages in c for ttl
func WithCache(c cache.Cache, ttl time.Duration) LedgerOption {
	return func(l *Ledger) {
		l.cache = c
		if ttl > 0 {
			l.cacheTTL = ttl
		}
	}
}

// WithTracer replaces the global OpenTelemetry tracer
func WithTracer(tracer trace.Tracer) LedgerOption {
	return func(l *Ledger) { l.tracer = tracer }
}

// WithMeter replaces the global OpenTelemetry meter
func WithMeter(meter metric.Meter) LedgerOption {
	return func(l *Ledger) { l.metrics = newLedgerMetrics(meter) }
}

// NewLedger builds a Ledger over store. Without WithCache nothing is cached.
func NewLedger(store repository.Store, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		store:    store,
		cache:    cache.Nop{},
		cacheTTL: DefaultCacheTTL,
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.metrics == nil {
		l.metrics = newLedgerMetrics(nil)
	}
	return l
}

// Deposit adds amount to the account and returns the new balance
func (l *Ledger) Deposit(ctx context.Context, accountID uint, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	return l.apply(ctx, domain.KindDeposit, accountID, amount, description)
}

// Withdraw takes amount from the account and returns the new balance. A
// balance that does not cover amount fails with *domain.InsufficientFundsError.
func (l *Ledger) Withdraw(ctx context.Context, accountID uint, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	return l.apply(ctx, domain.KindWithdraw, accountID, amount, description)
}

func (l *Ledger) apply(ctx context.Context, kind domain.TransactionKind, accountID uint, amount decimal.Decimal, description string) (decimal.Decimal, error) {
	ctx, span := l.tracer.Start(ctx, "ledger."+string(kind), trace.WithAttributes(
		attribute.Int64("account.id", int64(accountID)),
		attribute.String("amount", amount.String()),
	))
	defer span.End()
	start := time.Now() // Start time for the duration histogram

	account, err := l.mutate(ctx, kind, accountID, amount, description)
	l.metrics.record(ctx, kind, err, time.Since(start)) // Count and time every attempt

	fields := logrus.Fields{
		"account_id": accountID,       // Account ID
		"amount":     amount.String(), // Operation amount
		"type":       kind,            // Transaction type
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		fields["error"] = err.Error()
		if isRejection(err) {
			logrus.WithFields(fields).Warn("Ledger operation rejected") // Client error, not a fault
		} else {
			logrus.WithFields(fields).Error("Ledger operation failed")
		}
		return decimal.Zero, err
	}

	fields["balance"] = account.Balance.String()
	logrus.WithFields(fields).Info("Ledger operation applied")
	span.SetAttributes(attribute.String("balance", account.Balance.String()))
	l.invalidate(ctx, account) // Drop stale listings
	return account.Balance, nil
}

// mutate runs the balance change and the log append as one unit
func (l *Ledger) mutate(ctx context.Context, kind domain.TransactionKind, accountID uint, amount decimal.Decimal, description string) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err // Rejected before touching the store
	}
	if description == "" {
		description = defaultDescription(kind) // "Deposit" or "Withdrawal"
	}

	var account *domain.Account
	err := l.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		switch kind {
		case domain.KindDeposit:
			account, err = tx.Accounts().IncrementBalance(ctx, accountID, amount)
		case domain.KindWithdraw:
			account, err = tx.Accounts().DecrementBalance(ctx, accountID, amount)
		default:
			return fmt.Errorf("unknown transaction kind %q", kind)
		}
		if err != nil {
			return err // Rolls back the unit of work
		}
		return tx.Transactions().Append(ctx, &domain.Transaction{
			AccountID:   accountID,
			Kind:        kind,
			Amount:      amount,
			Description: description,
		})
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// AccountsFor lists the accounts owned by userID
func (l *Ledger) AccountsFor(ctx context.Context, userID uint) ([]domain.Account, error) {
	key := accountsKey(userID)
	var accounts []domain.Account
	if found, err := l.cache.Get(ctx, key, &accounts); err == nil && found {
		return accounts, nil // Cache hit
	} else if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
	}

	accounts, err := l.store.Accounts().ListByOwner(ctx, userID) // Cache miss, read the store
	if err != nil {
		return nil, err
	}
	l.cacheSet(ctx, key, accounts)
	return accounts, nil
}

// Authorize loads the account and checks that userID owns it
func (l *Ledger) Authorize(ctx context.Context, userID, accountID uint) (*domain.Account, error) {
	account, err := l.store.Accounts().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.OwnedBy(userID) {
		return nil, domain.ErrForbidden // Someone else's account
	}
	return account, nil
}

// History returns a page of the account's transactions, newest first. The
// caller is expected to have authorized access to the account.
func (l *Ledger) History(ctx context.Context, accountID uint, page repository.Page) (*TransactionPage, error) {
	key := historyKey(accountID, page)
	var cached TransactionPage
	if found, err := l.cache.Get(ctx, key, &cached); err == nil && found {
		cached.Cached = true // Reported in the X-Cache header
		return &cached, nil
	} else if err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache read failed")
	}

	transactions, total, err := l.store.Transactions().ListByAccount(ctx, accountID, page)
	if err != nil {
		return nil, err
	}
	result := &TransactionPage{
		Transactions: transactions,
		Page:         page.Number,
		PageSize:     page.Size,
		Total:        total,
		TotalPages:   page.TotalPages(total),
	}
	l.cacheSet(ctx, key, result)
	return result, nil
}

func (l *Ledger) cacheSet(ctx context.Context, key string, value any) {
	if err := l.cache.Set(ctx, key, value, l.cacheTTL); err != nil {
		logrus.WithFields(logrus.Fields{"key": key, "error": err.Error()}).Warn("Cache write failed")
	}
}

// invalidate drops the cached listings a mutation of account makes stale
func (l *Ledger) invalidate(ctx context.Context, account *domain.Account) {
	if err := l.cache.Delete(ctx, accountsKey(account.UserID)); err != nil {
		logrus.WithFields(logrus.Fields{"user_id": account.UserID, "error": err.Error()}).Warn("Failed to invalidate accounts cache")
	}
	if err := l.cache.DeletePrefix(ctx, historyPrefix(account.ID)); err != nil {
		logrus.WithFields(logrus.Fields{"account_id": account.ID, "error": err.Error()}).Warn("Failed to invalidate history cache")
	}
}

func accountsKey(userID uint) string {
	return fmt.Sprintf("accounts:user:%d", userID)
}

func historyPrefix(accountID uint) string {
	return fmt.Sprintf("txhistory:account:%d:", accountID)
}

func historyKey(accountID uint, page repository.Page) string {
	return fmt.Sprintf("%spage:%d:size:%d", historyPrefix(accountID), page.Number, page.Size)
}

func defaultDescription(kind domain.TransactionKind) string {
	if kind == domain.KindWithdraw {
		return "Withdrawal"
	}
	return "Deposit"
}

// isRejection reports whether err is a refusal of the request rather than a failure
func isRejection(err error) bool {
	return errors.Is(err, domain.ErrInvalidAmount) ||
		errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrBalanceLimit) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrForbidden)
}
