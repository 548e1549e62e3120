package payment

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Unlock sources
const (
	SourceCallback       = "callback"
	SourceReconciliation = "reconciliation"
)

// UnlockedEvent is published when a user gains access to a resource
type UnlockedEvent struct {
	UserID        uint      `json:"user_id"`
	ResourceID    uint      `json:"resource_id"`
	TransactionID uint      `json:"transaction_id,omitempty"`
	CallbackID    uint      `json:"callback_id,omitempty"`
	Source        string    `json:"source"`
	At            time.Time `json:"at"`
}

// UnresolvedEvent is published when money was captured but nothing could be unlocked
type UnresolvedEvent struct {
	CallbackID        uint            `json:"callback_id"`
	Reason            string          `json:"reason"`
	AccountReference  string          `json:"account_reference,omitempty"`
	CheckoutRequestID string          `json:"checkout_request_id,omitempty"`
	PhoneNumber       string          `json:"phone_number,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	At                time.Time       `json:"at"`
}

// publish is fire-and-forget; the database is the source of truth
func (s *Service) publish(subject string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logrus.WithError(err).WithField("subject", subject).Error("Failed to encode event")
		return
	}
	if err := s.bus.Publish(subject, data); err != nil {
		logrus.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}
