package domain

import (
	"time"

	"github.com/shopspring/decimal" // Precise monetary values
)

// PaymentMethod is how a transaction was paid
type PaymentMethod string

// Supported payment methods
const (
	MethodMpesa  PaymentMethod = "MPESA"
	MethodWallet PaymentMethod = "WALLET"
	MethodCard   PaymentMethod = "CARD"
	MethodBank   PaymentMethod = "BANK"
)

// Valid reports whether m is a known method
func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodMpesa, MethodWallet, MethodCard, MethodBank:
		return true
	}
	return false
}

// TransactionStatus is the outcome of a payment
type TransactionStatus string

// Transaction statuses
const (
	StatusPending TransactionStatus = "PENDING"
	StatusSuccess TransactionStatus = "SUCCESS"
	StatusFailed  TransactionStatus = "FAILED"
)

// Valid reports whether s is a known status
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusFailed:
		return true
	}
	return false
}

// Transaction Model. Append-only audit log of payment outcomes.
type Transaction struct {
	ID        uint              `gorm:"primaryKey" json:"id"`                                             // Primary key
	UserID    *uint             `gorm:"index:idx_transactions_user_created,priority:1" json:"user_id"`    // Nil when a callback could not be attributed
	Amount    decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"amount"`                        // Amount, never negative
	Method    PaymentMethod     `gorm:"size:10;not null" json:"method"`                                   // MPESA, WALLET, CARD or BANK
	Status    TransactionStatus `gorm:"size:10;not null;index" json:"status"`                             // PENDING, SUCCESS or FAILED
	CreatedAt time.Time         `gorm:"index:idx_transactions_user_created,priority:2" json:"created_at"` // Timestamp of creation
}
