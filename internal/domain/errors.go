package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAmount      = errors.New("amount must be a positive value with at most 2 decimal places")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrForbidden          = errors.New("access denied - not your account")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionInvalid     = errors.New("session is invalid or expired")
	ErrInvalidSignup      = errors.New("email, full name and a password of 8 to 72 characters are required")
	ErrBalanceLimit       = errors.New("deposit would take the balance past its limit")
)

// InsufficientFundsError carries the balance that was available when a withdrawal was refused
type InsufficientFundsError struct {
	AccountID uint
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds on account %d: requested %s, available %s",
		e.AccountID, e.Requested.StringFixed(2), e.Available.StringFixed(2))
}

// Is makes errors.Is(err, ErrInsufficientFunds) match
func (e *InsufficientFundsError) Is(target error) bool {
	return target == ErrInsufficientFunds
}
