package domain

import "github.com/shopspring/decimal"

// Precision of balances and amounts, matching a decimal(20,2) column
const (
	MaxDecimalPlaces = 2
	MaxIntegerDigits = 18
)

// MaxBalance is the largest value a decimal(20,2) column holds: 999999999999999999.99
var MaxBalance = decimal.New(1, MaxIntegerDigits).Sub(decimal.New(1, -MaxDecimalPlaces))

// ValidateAmount checks that an amount can be applied to a balance
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	// More than two decimals would be silently rounded by the decimal(20,2) column
	if !amount.Equal(amount.Truncate(MaxDecimalPlaces)) {
		return ErrInvalidAmount
	}
	// Wider amounts overflow the column
	if amount.GreaterThan(MaxBalance) {
		return ErrInvalidAmount
	}
	return nil
}

// CreditHeadroom is the highest balance that can still take amount without
// passing MaxBalance
func CreditHeadroom(amount decimal.Decimal) decimal.Decimal {
	return MaxBalance.Sub(amount)
}
