package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes" // JSON column type
)

// CallbackOutcome is what Confirm made of a provider callback
type CallbackOutcome string

// Callback outcomes
const (
	OutcomeConfirmed  CallbackOutcome = "CONFIRMED"  // Paid and unlocked
	OutcomeDeclined   CallbackOutcome = "DECLINED"   // Cancelled or failed at the provider
	OutcomeUnresolved CallbackOutcome = "UNRESOLVED" // Paid but not attributable, needs an operator
	OutcomeMalformed  CallbackOutcome = "MALFORMED"  // Payload could not be parsed
)

// CallbackEvent stores every provider callback as received, with what we did about it.
type CallbackEvent struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	MerchantRequestID  string          `gorm:"size:64;index" json:"merchant_request_id"`
	CheckoutRequestID  string          `gorm:"size:64;index" json:"checkout_request_id"`
	ResultCode         *int            `json:"result_code"`
	ResultDesc         string          `gorm:"size:255" json:"result_desc"`
	AccountReference   string          `gorm:"size:64" json:"account_reference"`
	PhoneNumber        string          `gorm:"size:20" json:"phone_number"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	Outcome            CallbackOutcome `gorm:"size:12;not null;index" json:"outcome"`
	Reason             string          `gorm:"size:255" json:"reason,omitempty"`
	TransactionID      *uint           `json:"transaction_id"`
	Payload            datatypes.JSON  `json:"payload"`
	ResolvedUserID     *uint           `json:"resolved_user_id,omitempty"`
	ResolvedResourceID *uint           `json:"resolved_resource_id,omitempty"`
	ResolvedAt         *time.Time      `json:"resolved_at,omitempty"`
	ReceivedAt         time.Time       `gorm:"autoCreateTime;index" json:"received_at"`
}
