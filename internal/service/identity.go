package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"bank_system/internal/domain"     // Importing domain models
	"bank_system/internal/repository" // Storage contracts

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
)

// Password length bounds. bcrypt ignores everything past 72 bytes.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 72
)

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash
	Compare(hash, password string) error
}

// BcryptHasher hashes with bcrypt at the given cost
type BcryptHasher struct {
	Cost int
}

// NewBcryptHasher uses bcrypt's default cost of 10
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{Cost: bcrypt.DefaultCost}
}

func (h BcryptHasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost) // Salted hash
	if err != nil {
		return "", err // Return error if hashing fails
	}
	return string(hash), nil
}

func (h BcryptHasher) Compare(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// Registration identifies the user and account created by Register
type Registration struct {
	UserID    uint `json:"userId"`
	AccountID uint `json:"accountId"`
}

// Identity registers users and checks their credentials
type Identity struct {
	store  repository.Store
	hasher PasswordHasher

	dummyOnce sync.Once
	dummyHash string
}

// NewIdentity builds an Identity. A nil hasher means bcrypt at the default cost.
func NewIdentity(store repository.Store, hasher PasswordHasher) *Identity {
	if hasher == nil {
		hasher = NewBcryptHasher()
	}
	return &Identity{store: store, hasher: hasher}
}

// NormalizeEmail is the form emails are stored and looked up in
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register creates a user and its first account, with a zero balance
func (s *Identity) Register(ctx context.Context, email, password, fullName string) (*Registration, error) {
	email = NormalizeEmail(email)          // Lowercase and trimmed
	fullName = strings.TrimSpace(fullName) // Trim whitespace
	if email == "" || fullName == "" || len(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return nil, domain.ErrInvalidSignup
	}

	// Fail fast before paying for a hash. The unique index still catches races.
	if _, err := s.store.Users().GetByEmail(ctx, email); err == nil {
		return nil, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(password) // Hash the password
	if err != nil {
		return nil, err
	}

	user := &domain.User{Email: email, PasswordHash: hash, FullName: fullName}
	account := &domain.Account{Balance: decimal.Zero} // New accounts start empty
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := tx.Users().Create(ctx, user); err != nil {
			return err
		}
		account.UserID = user.ID // ID assigned by Create
		return tx.Accounts().Create(ctx, account)
	})
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"user_id":    user.ID,    // User ID
		"account_id": account.ID, // Account ID
	}).Info("User registered")
	return &Registration{UserID: user.ID, AccountID: account.ID}, nil
}

// Login checks the credentials and returns the matching user. An unknown email
// and a wrong password fail the same way, with domain.ErrInvalidCredentials.
func (s *Identity) Login(ctx context.Context, email, password string) (*domain.User, error) {
	user, err := s.store.Users().GetByEmail(ctx, NormalizeEmail(email))
	if errors.Is(err, domain.ErrUserNotFound) {
		// Spend the same hashing time as for a known user
		_ = s.hasher.Compare(s.dummy(), password)
		logrus.Info("Login failed")
		return nil, domain.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		logrus.WithField("user_id", user.ID).Info("Login failed") // Wrong password
		return nil, domain.ErrInvalidCredentials
	}
	logrus.WithField("user_id", user.ID).Info("User logged in")
	return user, nil
}

func (s *Identity) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("not-a-real-password")
		if err == nil {
			s.dummyHash = hash // Computed once per process
		}
	})
	return s.dummyHash
}
