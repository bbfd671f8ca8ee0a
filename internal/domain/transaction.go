package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the direction of a ledger operation
type TransactionKind string

const (
	KindDeposit  TransactionKind = "deposit"  // Money added to the account
	KindWithdraw TransactionKind = "withdraw" // Money taken from the account
)

// Transaction Model
type Transaction struct {
	ID          uint            `gorm:"primaryKey" json:"id"`                      // Primary key
	AccountID   uint            `gorm:"index;not null" json:"account_id"`          // Foreign key to Account
	Kind        TransactionKind `gorm:"column:type;size:16;not null" json:"type"`  // deposit or withdraw
	Amount      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"` // Always positive
	Description string          `gorm:"size:255" json:"description"`               // Free text
	Timestamp   time.Time       `gorm:"index;not null" json:"timestamp"`           // When the operation was recorded
}
