// Package memstore is an in-memory implementation of repository.Store.
// It backs demo mode and tests. A single mutex serializes every operation,
// so a balance check and the debit that follows it can never interleave with
// another writer.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"bank_system/internal/domain"
	"bank_system/internal/repository"

	"github.com/shopspring/decimal"
)

// state is the whole dataset, swapped wholesale on rollback
type state struct {
	users         map[uint]domain.User
	accounts      map[uint]domain.Account
	transactions  []domain.Transaction
	nextUserID    uint
	nextAccountID uint
	nextTxID      uint
}

func newState() *state {
	return &state{
		users:    make(map[uint]domain.User),
		accounts: make(map[uint]domain.Account),
	}
}

// clone copies the state deeply enough to restore it after a failed unit of work
func (s *state) clone() *state {
	cp := &state{
		users:         make(map[uint]domain.User, len(s.users)),
		accounts:      make(map[uint]domain.Account, len(s.accounts)),
		transactions:  make([]domain.Transaction, len(s.transactions)),
		nextUserID:    s.nextUserID,
		nextAccountID: s.nextAccountID,
		nextTxID:      s.nextTxID,
	}
	for id, u := range s.users {
		cp.users[id] = u
	}
	for id, a := range s.accounts {
		cp.accounts[id] = a
	}
	copy(cp.transactions, s.transactions)
	return cp
}

// Store is the in-memory backend
type Store struct {
	mu   *sync.Mutex
	data **state
	inTx bool // set on the view handed to WithinTx, which already holds mu
	now  func() time.Time
}

// Option customizes a Store
type Option func(*Store)

// WithClock replaces time.Now for CreatedAt and Timestamp defaults
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New returns an empty store
func New(opts ...Option) *Store {
	data := newState()
	s := &Store{mu: &sync.Mutex{}, data: &data, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lock acquires the store mutex unless the caller is already inside WithinTx
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) current() *state {
	return *s.data
}

func (s *Store) Users() repository.UserStore             { return userStore{s} }
func (s *Store) Accounts() repository.AccountStore       { return accountStore{s} }
func (s *Store) Transactions() repository.TransactionLog { return transactionLog{s} }

// WithinTx holds the store lock for the whole of fn and restores the previous
// state if fn fails
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.current().clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
	if err := fn(tx); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

type userStore struct{ s *Store }

func (u userStore) Create(_ context.Context, user *domain.User) error {
	defer u.s.lock()()
	st := u.s.current()
	for _, existing := range st.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrEmailTaken
		}
	}
	st.nextUserID++
	user.ID = st.nextUserID
	if user.CreatedAt.IsZero() {
		user.CreatedAt = u.s.now().UTC()
	}
	st.users[user.ID] = *user
	return nil
}

func (u userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	defer u.s.lock()()
	for _, existing := range u.s.current().users {
		if strings.EqualFold(existing.Email, email) {
			found := existing
			return &found, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (u userStore) GetByID(_ context.Context, id uint) (*domain.User, error) {
	defer u.s.lock()()
	existing, ok := u.s.current().users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &existing, nil
}

type accountStore struct{ s *Store }

func (a accountStore) Create(_ context.Context, account *domain.Account) error {
	defer a.s.lock()()
	st := a.s.current()
	st.nextAccountID++
	account.ID = st.nextAccountID
	if account.CreatedAt.IsZero() {
		account.CreatedAt = a.s.now().UTC()
	}
	st.accounts[account.ID] = *account
	return nil
}

func (a accountStore) GetByID(_ context.Context, id uint) (*domain.Account, error) {
	defer a.s.lock()()
	existing, ok := a.s.current().accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return &existing, nil
}

func (a accountStore) ListByOwner(_ context.Context, userID uint) ([]domain.Account, error) {
	defer a.s.lock()()
	out := make([]domain.Account, 0)
	for _, acc := range a.s.current().accounts {
		if acc.UserID == userID {
			out = append(out, acc)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a accountStore) IncrementBalance(_ context.Context, id uint, amount decimal.Decimal) (*domain.Account, error) {
	defer a.s.lock()()
	st := a.s.current()
	acc, ok := st.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if acc.Balance.GreaterThan(domain.CreditHeadroom(amount)) {
		return nil, domain.ErrBalanceLimit
	}
	acc.Balance = acc.Balance.Add(amount)
	st.accounts[id] = acc
	return &acc, nil
}

func (a accountStore) DecrementBalance(_ context.Context, id uint, amount decimal.Decimal) (*domain.Account, error) {
	defer a.s.lock()()
	st := a.s.current()
	acc, ok := st.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	if acc.Balance.LessThan(amount) {
		return nil, &domain.InsufficientFundsError{AccountID: id, Requested: amount, Available: acc.Balance}
	}
	acc.Balance = acc.Balance.Sub(amount)
	st.accounts[id] = acc
	return &acc, nil
}

type transactionLog struct{ s *Store }

func (l transactionLog) Append(_ context.Context, tx *domain.Transaction) error {
	defer l.s.lock()()
	st := l.s.current()
	if _, ok := st.accounts[tx.AccountID]; !ok {
		return domain.ErrAccountNotFound
	}
	st.nextTxID++
	tx.ID = st.nextTxID
	if tx.Timestamp.IsZero() {
		tx.Timestamp = l.s.now().UTC()
	}
	st.transactions = append(st.transactions, *tx)
	return nil
}

func (l transactionLog) ListByAccount(_ context.Context, accountID uint, page repository.Page) ([]domain.Transaction, int64, error) {
	defer l.s.lock()()
	matched := make([]domain.Transaction, 0)
	for _, tx := range l.s.current().transactions {
		if tx.AccountID == accountID {
			matched = append(matched, tx)
		}
	}
	// Newest first, ties broken by insertion order
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].ID > matched[j].ID
	})
	total := int64(len(matched))
	if page.Unbounded() {
		return matched, total, nil
	}
	start := page.Offset()
	if start < 0 || start >= len(matched) {
		return []domain.Transaction{}, total, nil
	}
	end := start + page.Size
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}
