package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AttemptState is the state of one purchase attempt
type AttemptState string

// Purchase attempt states. REQUESTED -> AWAITING_PROVIDER -> CONFIRMED | DECLINED | UNRESOLVED
const (
	AttemptRequested        AttemptState = "REQUESTED"
	AttemptAwaitingProvider AttemptState = "AWAITING_PROVIDER"
	AttemptConfirmed        AttemptState = "CONFIRMED"
	AttemptDeclined         AttemptState = "DECLINED"
	AttemptUnresolved       AttemptState = "UNRESOLVED"
)

// Terminal reports whether no further transition is allowed
func (s AttemptState) Terminal() bool {
	return s == AttemptConfirmed || s == AttemptDeclined || s == AttemptUnresolved
}

// PaymentAttempt tracks one Initiate call through to its callback
type PaymentAttempt struct {
	ID                uint            `gorm:"primaryKey" json:"id"`
	UserID            uint            `gorm:"not null;index" json:"user_id"`
	ResourceID        uint            `gorm:"not null" json:"resource_id"`
	AccountReference  string          `gorm:"size:64;not null;index" json:"account_reference"`
	PhoneNumber       string          `gorm:"size:20" json:"phone_number"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	State             AttemptState    `gorm:"size:20;not null;index" json:"state"`
	MerchantRequestID string          `gorm:"size:64" json:"merchant_request_id,omitempty"`
	CheckoutRequestID string          `gorm:"size:64;index" json:"checkout_request_id,omitempty"`
	LastError         string          `gorm:"size:512" json:"last_error,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}
