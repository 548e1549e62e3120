package domain

import (
	"time"

	"github.com/shopspring/decimal" // Precise monetary values
)

// Wallet Model
type Wallet struct {
	ID        uint            `gorm:"primaryKey" json:"id"`                                 // Primary key
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`                  // Foreign key to User
	Balance   decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"balance"` // Wallet balance, never negative
	CreatedAt time.Time       `json:"created_at"`                                           // Creation time
	UpdatedAt time.Time       `json:"updated_at"`                                           // Last balance change
}
