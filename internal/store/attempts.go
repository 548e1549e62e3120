package store

import (
	"context"
	"errors"
	"unicode/utf8"

	"elimu_payments/internal/domain"

	"gorm.io/gorm"
)

var openStates = []domain.AttemptState{domain.AttemptRequested, domain.AttemptAwaitingProvider}

// AttemptStore tracks purchase attempts through their states
type AttemptStore struct {
	db *gorm.DB
}

func NewAttemptStore(db *gorm.DB) *AttemptStore {
	return &AttemptStore{db: db}
}

func (s *AttemptStore) WithTx(tx *gorm.DB) *AttemptStore {
	return &AttemptStore{db: tx}
}

// Create inserts a REQUESTED attempt
func (s *AttemptStore) Create(ctx context.Context, a *domain.PaymentAttempt) error {
	a.State = domain.AttemptRequested
	return wrap("create attempt", s.db.WithContext(ctx).Create(a).Error)
}

// MarkAwaiting moves a REQUESTED attempt to AWAITING_PROVIDER. A callback that
// already arrived for the checkout id settles the attempt instead; the
// provider ids are recorded either way.
func (s *AttemptStore) MarkAwaiting(ctx context.Context, id uint, merchantRequestID, checkoutRequestID string) error {
	db := s.db.WithContext(ctx)
	if err := db.Model(&domain.PaymentAttempt{}).Where("id = ?", id).
		Updates(map[string]any{
			"merchant_request_id": merchantRequestID,
			"checkout_request_id": checkoutRequestID,
		}).Error; err != nil {
		return wrap("update attempt", err)
	}

	next := domain.AttemptAwaitingProvider
	if checkoutRequestID != "" {
		var ev domain.CallbackEvent
		err := db.Where("checkout_request_id = ? AND outcome <> ?", checkoutRequestID, domain.OutcomeMalformed).
			Order("id").First(&ev).Error
		switch {
		case err == nil:
			next = attemptStateFor(ev.Outcome)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return wrap("find callback", err)
		}
	}
	err := db.Model(&domain.PaymentAttempt{}).
		Where("id = ? AND state IN ?", id, openStates).
		Update("state", next).Error
	return wrap("update attempt", err)
}

func attemptStateFor(o domain.CallbackOutcome) domain.AttemptState {
	switch o {
	case domain.OutcomeConfirmed:
		return domain.AttemptConfirmed
	case domain.OutcomeDeclined:
		return domain.AttemptDeclined
	default:
		return domain.AttemptUnresolved
	}
}

// RecordError notes why the push for a REQUESTED attempt failed. The attempt
// stays REQUESTED so the purchase can be retried.
func (s *AttemptStore) RecordError(ctx context.Context, id uint, msg string) error {
	msg = truncate(msg, 512)
	err := s.db.WithContext(ctx).Model(&domain.PaymentAttempt{}).
		Where("id = ? AND state = ?", id, domain.AttemptRequested).
		Update("last_error", msg).Error
	return wrap("update attempt", err)
}

// Settle moves the open attempt matching the callback to a terminal state.
// A callback with a checkout request id settles only the attempt carrying
// that id; if no attempt carries it, the newest open attempt for the account
// reference that already has a provider id is used. A callback without a
// checkout id falls back to the newest open attempt for the account reference.
// It returns false when nothing was settled.
func (s *AttemptStore) Settle(ctx context.Context, checkoutRequestID, accountReference string, state domain.AttemptState) (bool, error) {
	db := s.db.WithContext(ctx)
	var a domain.PaymentAttempt

	err := gorm.ErrRecordNotFound
	if checkoutRequestID != "" {
		err = db.Where("checkout_request_id = ?", checkoutRequestID).Order("id desc").First(&a).Error
		if err == nil && a.State.Terminal() {
			return false, nil
		}
	}
	if errors.Is(err, gorm.ErrRecordNotFound) && accountReference != "" {
		q := db.Where("account_reference = ? AND state IN ?", accountReference, openStates)
		if checkoutRequestID != "" {
			q = q.Where("checkout_request_id <> ''")
		}
		err = q.Order("id desc").First(&a).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrap("find attempt", err)
	}

	res := db.Model(&domain.PaymentAttempt{}).
		Where("id = ? AND state IN ?", a.ID, openStates).
		Update("state", state)
	if res.Error != nil {
		return false, wrap("settle attempt", res.Error)
	}
	return res.RowsAffected == 1, nil
}

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

// Get returns one attempt or ErrNotFound
func (s *AttemptStore) Get(ctx context.Context, id uint) (*domain.PaymentAttempt, error) {
	var a domain.PaymentAttempt
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		return nil, wrap("get attempt", err)
	}
	return &a, nil
}
