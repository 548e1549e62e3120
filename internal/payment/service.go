// Package payment runs the M-Pesa purchase flow: STK push initiation,
// callback confirmation and operator reconciliation.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/events"
	"elimu_payments/internal/mpesa"
	"elimu_payments/internal/store"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Initiate statuses
const (
	StatusPending  = "pending"
	StatusUnlocked = "unlocked"
)

// Gateway is the provider side of the purchase flow
type Gateway interface {
	GetAccessToken(ctx context.Context) (string, error)
	InitiateSTKPush(ctx context.Context, p mpesa.STKPushParams) (*mpesa.STKPushResponse, error)
}

// Service orchestrates purchases across the gateway and the stores
type Service struct {
	db      *gorm.DB
	gateway Gateway
	bus     events.Bus
	now     func() time.Time

	resources    *store.ResourceStore
	users        *store.UserStore
	entitlements *store.EntitlementStore
	attempts     *store.AttemptStore
}

func NewService(db *gorm.DB, gateway Gateway, bus events.Bus) *Service {
	if bus == nil {
		bus = events.Noop{}
	}
	return &Service{
		db:           db,
		gateway:      gateway,
		bus:          bus,
		now:          time.Now,
		resources:    store.NewResourceStore(db),
		users:        store.NewUserStore(db),
		entitlements: store.NewEntitlementStore(db),
		attempts:     store.NewAttemptStore(db),
	}
}

// InitiateResult is returned to the buyer. Provider is set only when a push was sent.
type InitiateResult struct {
	Status           string                 `json:"status"`
	AttemptID        uint                   `json:"attempt_id,omitempty"`
	AccountReference string                 `json:"account_reference,omitempty"`
	Provider         *mpesa.STKPushResponse `json:"provider,omitempty"`
}

// Initiate asks the provider to prompt phone for the price of resourceID.
// The outcome arrives later through Confirm.
func (s *Service) Initiate(ctx context.Context, userID, resourceID uint, phone string) (*InitiateResult, error) {
	log := logrus.WithFields(logrus.Fields{"user_id": userID, "resource_id": resourceID})

	res, err := s.resources.Get(ctx, resourceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("resource %d: %w", resourceID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if res.IsFree {
		return nil, invalid("This resource is free and does not require payment.")
	}

	unlocked, err := s.entitlements.IsUnlocked(ctx, userID, resourceID)
	if err != nil {
		return nil, err
	}
	if unlocked {
		log.Info("Resource already unlocked, no charge")
		return &InitiateResult{Status: StatusUnlocked}, nil
	}

	if !res.Price.IsPositive() {
		return nil, invalid("This resource has no price set.")
	}
	phone = mpesa.SanitizePhone(phone)
	if !mpesa.ValidPhone(phone) {
		return nil, invalid("Phone must be a Safaricom number such as 0712345678 or 254712345678.")
	}

	// A callback can only be attributed to a user row that exists
	known, err := s.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !known {
		log.Warn("Initiate for user without a local account")
		return nil, invalid("Your account is not set up for payments yet. Sign in again and retry.")
	}

	token, err := s.gateway.GetAccessToken(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to obtain M-Pesa access token")
		return nil, fmt.Errorf("%w: %v", ErrUpstreamAuth, err)
	}

	ref := CorrelationToken(userID, resourceID)
	attempt := &domain.PaymentAttempt{
		UserID:           userID,
		ResourceID:       resourceID,
		AccountReference: ref,
		PhoneNumber:      phone,
		Amount:           res.Price,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		return nil, err
	}
	log = log.WithField("attempt_id", attempt.ID)

	resp, err := s.gateway.InitiateSTKPush(ctx, mpesa.STKPushParams{
		Phone:            phone,
		Amount:           res.Price,
		Token:            token,
		Title:            res.Title,
		AccountReference: ref,
	})
	if err != nil {
		log.WithError(err).Error("STK push failed")
		if recErr := s.attempts.RecordError(ctx, attempt.ID, err.Error()); recErr != nil {
			log.WithError(recErr).Warn("Failed to record attempt error")
		}
		return nil, &InitiationError{Detail: providerDetail(err), Cause: err}
	}

	if err := s.attempts.MarkAwaiting(ctx, attempt.ID, resp.MerchantRequestID, resp.CheckoutRequestID); err != nil {
		// The push went out; the callback can still settle the attempt by account reference
		log.WithError(err).Warn("Failed to mark attempt awaiting provider")
	}
	log.WithField("checkout_request_id", resp.CheckoutRequestID).Info("Payment initiated")

	return &InitiateResult{
		Status:           StatusPending,
		AttemptID:        attempt.ID,
		AccountReference: ref,
		Provider:         resp,
	}, nil
}

func providerDetail(err error) string {
	var stkErr *mpesa.STKError
	if errors.As(err, &stkErr) && stkErr.Body != "" {
		return stkErr.Body
	}
	return err.Error()
}

// IsPaidFor reports whether userID has unlocked resourceID
func (s *Service) IsPaidFor(ctx context.Context, userID, resourceID uint) (bool, error) {
	ok, err := s.resources.Exists(ctx, resourceID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, fmt.Errorf("resource %d: %w", resourceID, ErrNotFound)
	}
	return s.entitlements.IsUnlocked(ctx, userID, resourceID)
}

// ConfirmResult describes what a callback led to
type ConfirmResult struct {
	CallbackID    uint                   `json:"callback_id"`
	Outcome       domain.CallbackOutcome `json:"outcome"`
	Reason        string                 `json:"reason,omitempty"`
	TransactionID uint                   `json:"transaction_id,omitempty"`
	UserID        uint                   `json:"user_id,omitempty"`
	ResourceID    uint                   `json:"resource_id,omitempty"`
	Unlocked      bool                   `json:"unlocked"` // A new entitlement was created
}

// Confirm applies a provider callback. The raw body is always persisted.
// A *CallbackError is returned when the body cannot be parsed; the result then
// carries the MALFORMED record. Duplicate deliveries add Transaction rows but
// never a second entitlement.
func (s *Service) Confirm(ctx context.Context, raw []byte) (*ConfirmResult, error) {
	cb, parseErr := ParseCallback(raw)
	if parseErr != nil {
		return s.saveMalformed(ctx, raw, parseErr)
	}

	ev := &domain.CallbackEvent{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: cb.CheckoutRequestID,
		ResultCode:        &cb.ResultCode,
		ResultDesc:        cb.ResultDesc,
		AccountReference:  cb.AccountReference,
		PhoneNumber:       cb.PhoneNumber,
		Amount:            cb.Amount,
		Payload:           jsonPayload(raw),
	}
	result := &ConfirmResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		transactions := store.NewTransactionStore(tx)
		attempts := s.attempts.WithTx(tx)

		var (
			txID  uint
			err   error
			state domain.AttemptState
		)
		switch {
		case !cb.Success():
			ev.Outcome = domain.OutcomeDeclined
			state = domain.AttemptDeclined
			txID, err = transactions.Record(ctx, nil, decimal.Zero, domain.MethodMpesa, domain.StatusFailed)

		default:
			userID, resourceID, reason, attrErr := s.attribute(ctx, tx, cb)
			if attrErr != nil {
				return attrErr
			}
			switch {
			case reason != "" && userID == 0:
				ev.Outcome = domain.OutcomeUnresolved
				ev.Reason = reason
				state = domain.AttemptUnresolved
				txID, err = transactions.Record(ctx, nil, cb.Amount, domain.MethodMpesa, domain.StatusSuccess)
			case reason != "":
				// Payer known but the payment does not cover the resource
				ev.Outcome = domain.OutcomeUnresolved
				ev.Reason = reason
				state = domain.AttemptUnresolved
				result.UserID, result.ResourceID = userID, resourceID
				txID, err = transactions.Record(ctx, &userID, cb.Amount, domain.MethodMpesa, domain.StatusSuccess)
			default:
				ev.Outcome = domain.OutcomeConfirmed
				state = domain.AttemptConfirmed
				result.UserID, result.ResourceID = userID, resourceID
				txID, err = transactions.Record(ctx, &userID, cb.Amount, domain.MethodMpesa, domain.StatusSuccess)
				if err == nil {
					result.Unlocked, err = s.entitlements.WithTx(tx).Unlock(ctx, userID, resourceID)
				}
			}
		}
		if err != nil {
			return err
		}

		ev.TransactionID = &txID
		if err := store.NewCallbackStore(tx).Save(ctx, ev); err != nil {
			return err
		}
		settled, err := attempts.Settle(ctx, cb.CheckoutRequestID, cb.AccountReference, state)
		if err != nil {
			return err
		}
		if !settled {
			logrus.WithField("checkout_request_id", cb.CheckoutRequestID).Debug("No open attempt for callback")
		}
		result.TransactionID = txID
		return nil
	})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"checkout_request_id": cb.CheckoutRequestID,
			"payload":             truncate(string(raw), maxLoggedPayload),
		}).Error("Failed to apply callback")
		return nil, err
	}

	result.CallbackID = ev.ID
	result.Outcome = ev.Outcome
	result.Reason = ev.Reason
	s.afterConfirm(cb, result)
	return result, nil
}

// attribute resolves the payer of a successful callback. reason is set when
// the payment cannot unlock anything; userID is then set only if the payer is known.
func (s *Service) attribute(ctx context.Context, tx *gorm.DB, cb *Callback) (userID, resourceID uint, reason string, err error) {
	if cb.AccountReference == "" {
		return 0, 0, "missing account reference", nil
	}
	uid, rid, perr := ParseCorrelationToken(cb.AccountReference)
	if perr != nil {
		return 0, 0, "malformed account reference", nil
	}

	ok, err := s.users.WithTx(tx).Exists(ctx, uid)
	if err != nil {
		return 0, 0, "", err
	}
	if !ok {
		return 0, 0, "unknown user", nil
	}
	res, err := s.resources.WithTx(tx).Get(ctx, rid)
	if errors.Is(err, store.ErrNotFound) {
		return 0, 0, "unknown resource", nil
	}
	if err != nil {
		return 0, 0, "", err
	}
	if !res.IsFree && cb.Amount.LessThan(res.Price) {
		return uid, rid, "amount below price", nil
	}
	return uid, rid, "", nil
}

func (s *Service) saveMalformed(ctx context.Context, raw []byte, parseErr error) (*ConfirmResult, error) {
	ev := &domain.CallbackEvent{
		Outcome: domain.OutcomeMalformed,
		Reason:  truncate(parseErr.Error(), 255),
		Payload: jsonPayload(raw),
	}
	log := logrus.WithError(parseErr)
	if err := store.NewCallbackStore(s.db).Save(ctx, ev); err != nil {
		log.WithField("save_error", err.Error()).Error("Malformed callback could not be persisted")
		return nil, parseErr
	}
	log.WithField("callback_id", ev.ID).Warn("Malformed callback persisted")
	return &ConfirmResult{CallbackID: ev.ID, Outcome: ev.Outcome, Reason: ev.Reason}, parseErr
}

func (s *Service) afterConfirm(cb *Callback, r *ConfirmResult) {
	log := logrus.WithFields(logrus.Fields{
		"callback_id":         r.CallbackID,
		"checkout_request_id": cb.CheckoutRequestID,
		"outcome":             r.Outcome,
		"amount":              cb.Amount.String(),
		"phone":               cb.PhoneNumber,
	})
	switch r.Outcome {
	case domain.OutcomeConfirmed:
		log.WithFields(logrus.Fields{
			"user_id":     r.UserID,
			"resource_id": r.ResourceID,
			"new":         r.Unlocked,
		}).Info("Payment confirmed")
		if r.Unlocked {
			s.publish(events.SubjectEntitlementUnlocked, UnlockedEvent{
				UserID:        r.UserID,
				ResourceID:    r.ResourceID,
				TransactionID: r.TransactionID,
				Source:        SourceCallback,
				At:            s.now().UTC(),
			})
		}
	case domain.OutcomeDeclined:
		log.WithFields(logrus.Fields{
			"result_code": cb.ResultCode,
			"result_desc": cb.ResultDesc,
		}).Warn("Payment not successful")
	case domain.OutcomeUnresolved:
		log.WithFields(logrus.Fields{
			"reason":            r.Reason,
			"account_reference": cb.AccountReference,
		}).Error("Payment captured but not attributed, needs reconciliation")
		s.publish(events.SubjectCallbackUnresolved, UnresolvedEvent{
			CallbackID:        r.CallbackID,
			Reason:            r.Reason,
			AccountReference:  cb.AccountReference,
			CheckoutRequestID: cb.CheckoutRequestID,
			PhoneNumber:       cb.PhoneNumber,
			Amount:            cb.Amount,
			At:                s.now().UTC(),
		})
	}
}

// jsonPayload keeps the body as received. JSON columns reject invalid
// documents, so anything else is stored as a JSON string.
func jsonPayload(raw []byte) datatypes.JSON {
	if json.Valid(raw) {
		return datatypes.JSON(raw)
	}
	quoted, _ := json.Marshal(string(raw))
	return datatypes.JSON(quoted)
}

const maxLoggedPayload = 4096

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
