package domain

import "time"

// User Model
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`                       // Primary key
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"` // Unique, lowercased email
	PasswordHash string    `gorm:"not null" json:"-"`                          // Bcrypt hash, never serialized
	FullName     string    `gorm:"size:255;not null" json:"full_name"`         // Display name
	CreatedAt    time.Time `json:"created_at"`                                 // Registration time
}
