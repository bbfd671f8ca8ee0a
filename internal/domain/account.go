package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account Model
type Account struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                       // Primary key
	UserID    uint            `gorm:"index;not null" json:"user_id"`              // Owner (foreign key to User)
	Balance   decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"balance"` // Current balance
	CreatedAt time.Time       `json:"created_at"`                                 // Creation time
}

// OwnedBy reports whether the account belongs to the given user
func (a *Account) OwnedBy(userID uint) bool {
	return a.UserID == userID
}
