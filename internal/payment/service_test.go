package payment

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/events"
	"elimu_payments/internal/mpesa"
	"elimu_payments/internal/store"
	"elimu_payments/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var accepted = &mpesa.STKPushResponse{
	MerchantRequestID:   "29115-34620561-1",
	CheckoutRequestID:   "ws_CO_1",
	ResponseCode:        "0",
	ResponseDescription: "Success. Request accepted for processing",
}

func expectPush(f *fixture) *mock.Call {
	f.gw.On("GetAccessToken", mock.Anything).Return("access-token", nil).Once()
	return f.gw.On("InitiateSTKPush", mock.Anything, mock.MatchedBy(func(p mpesa.STKPushParams) bool {
		return p.Phone == "254712345678" &&
			p.Amount.Equal(decimal.NewFromInt(200)) &&
			p.Token == "access-token" &&
			p.Title == "Form 4 Chemistry Revision" &&
			p.AccountReference == "3:7"
	})).Return(accepted, nil).Once()
}

func TestScenarioA_InitiateThenConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expectPush(f)

	res, err := f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)
	assert.Equal(t, "3:7", res.AccountReference)
	f.gw.AssertExpectations(t)

	attempt, err := store.NewAttemptStore(f.db).Get(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptAwaitingProvider, attempt.State)

	paid, err := f.svc.IsPaidFor(ctx, 3, 7)
	require.NoError(t, err)
	assert.False(t, paid)

	out, err := f.svc.Confirm(ctx, paidCallback(t, "ws_CO_1", 200, "3:7"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConfirmed, out.Outcome)
	assert.True(t, out.Unlocked)

	paid, err = f.svc.IsPaidFor(ctx, 3, 7)
	require.NoError(t, err)
	assert.True(t, paid)

	txs := f.transactions(t)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].UserID)
	assert.Equal(t, uint(3), *txs[0].UserID)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, domain.MethodMpesa, txs[0].Method)
	assert.Equal(t, domain.StatusSuccess, txs[0].Status)

	attempt, err = store.NewAttemptStore(f.db).Get(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, attempt.State)

	assert.Equal(t, []string{events.SubjectEntitlementUnlocked}, f.bus.subjects())
}

func TestScenarioB_DuplicateConfirm(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := paidCallback(t, "ws_CO_1", 200, "3:7")

	first, err := f.svc.Confirm(ctx, body)
	require.NoError(t, err)
	assert.True(t, first.Unlocked)

	second, err := f.svc.Confirm(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeConfirmed, second.Outcome)
	assert.False(t, second.Unlocked)

	assert.Equal(t, int64(1), f.entitlementCount(t))
	txs := f.transactions(t)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, domain.StatusSuccess, tx.Status)
	}

	paid, err := f.svc.IsPaidFor(ctx, 3, 7)
	require.NoError(t, err)
	assert.True(t, paid)

	// Only the first delivery announces the unlock
	assert.Equal(t, []string{events.SubjectEntitlementUnlocked}, f.bus.subjects())
}

func TestScenarioC_MissingAccountReference(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Confirm(context.Background(), paidCallback(t, "ws_CO_1", 200, ""))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnresolved, out.Outcome)
	assert.Equal(t, "missing account reference", out.Reason)

	txs := f.transactions(t)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].UserID)
	assert.Equal(t, domain.StatusSuccess, txs[0].Status)
	assert.True(t, txs[0].Amount.Equal(decimal.NewFromInt(200)))
	assert.Zero(t, f.entitlementCount(t))

	ev, err := store.NewCallbackStore(f.db).Get(context.Background(), out.CallbackID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnresolved, ev.Outcome)
	assert.NotEmpty(t, ev.Payload)
	require.NotNil(t, ev.TransactionID)
	assert.Equal(t, txs[0].ID, *ev.TransactionID)

	assert.Equal(t, []string{events.SubjectCallbackUnresolved}, f.bus.subjects())
}

func TestScenarioD_Declined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	expectPush(f)

	res, err := f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.NoError(t, err)

	out, err := f.svc.Confirm(ctx, callbackBody(t, "ws_CO_1", 1))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeDeclined, out.Outcome)

	txs := f.transactions(t)
	require.Len(t, txs, 1)
	assert.Nil(t, txs[0].UserID)
	assert.True(t, txs[0].Amount.IsZero())
	assert.Equal(t, domain.StatusFailed, txs[0].Status)
	assert.Zero(t, f.entitlementCount(t))

	attempt, err := store.NewAttemptStore(f.db).Get(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptDeclined, attempt.State)
	assert.Empty(t, f.bus.subjects())
}

func TestConfirm_Unattributable(t *testing.T) {
	tests := []struct {
		name   string
		ref    string
		reason string
	}{
		{"unknown user", "99:7", "unknown user"},
		{"unknown resource", "3:99", "unknown resource"},
		{"not int pair", "abc", "malformed account reference"},
		{"dash separated", "3-7", "malformed account reference"},
		{"zero user", "0:7", "malformed account reference"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			out, err := f.svc.Confirm(context.Background(), paidCallback(t, "ws_CO_1", 200, tt.ref))
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeUnresolved, out.Outcome)
			assert.Equal(t, tt.reason, out.Reason)

			txs := f.transactions(t)
			require.Len(t, txs, 1)
			assert.Nil(t, txs[0].UserID)
			assert.Equal(t, domain.StatusSuccess, txs[0].Status)
			assert.Zero(t, f.entitlementCount(t))
		})
	}
}

func TestConfirm_AmountBelowPrice(t *testing.T) {
	f := newFixture(t)

	out, err := f.svc.Confirm(context.Background(), paidCallback(t, "ws_CO_1", 150, "3:7"))
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeUnresolved, out.Outcome)
	assert.Equal(t, "amount below price", out.Reason)

	txs := f.transactions(t)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].UserID)
	assert.Equal(t, uint(3), *txs[0].UserID)
	assert.Zero(t, f.entitlementCount(t))
}

func TestConfirm_Malformed(t *testing.T) {
	for _, raw := range []string{`not json`, `{"Body":{}}`, `{"Body":{"stkCallback":{"ResultDesc":"x"}}}`} {
		t.Run(raw, func(t *testing.T) {
			f := newFixture(t)

			out, err := f.svc.Confirm(context.Background(), []byte(raw))
			require.Error(t, err)
			assert.True(t, IsCallbackError(err))
			require.NotNil(t, out)
			assert.Equal(t, domain.OutcomeMalformed, out.Outcome)

			ev, err := store.NewCallbackStore(f.db).Get(context.Background(), out.CallbackID)
			require.NoError(t, err)
			assert.Equal(t, domain.OutcomeMalformed, ev.Outcome)
			assert.NotEmpty(t, ev.Payload)

			assert.Empty(t, f.transactions(t))
			assert.Zero(t, f.entitlementCount(t))
		})
	}
}

func TestConfirm_BeforeInitiateReturns(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// The provider calls back while the push request is still in flight
	expectPush(f).Run(func(mock.Arguments) {
		out, err := f.svc.Confirm(ctx, paidCallback(t, "", 200, "3:7"))
		assert.NoError(t, err)
		assert.Equal(t, domain.OutcomeConfirmed, out.Outcome)
	})

	res, err := f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, res.Status)

	attempt, err := store.NewAttemptStore(f.db).Get(ctx, res.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, domain.AttemptConfirmed, attempt.State, "late initiate update must not reopen the attempt")
	assert.Equal(t, "ws_CO_1", attempt.CheckoutRequestID)
}

func TestInitiate_FreeResource(t *testing.T) {
	f := newFixture(t)
	testutil.SeedResource(t, f.db, 8, "KCPE Past Papers", "0", true)

	_, err := f.svc.Initiate(context.Background(), 3, 8, "0712345678")
	assert.ErrorIs(t, err, ErrInvalidRequest)
	f.gw.AssertNotCalled(t, "GetAccessToken", mock.Anything)
	f.gw.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)
}

func TestInitiate_AlreadyUnlocked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := store.NewEntitlementStore(f.db).Unlock(ctx, 3, 7)
	require.NoError(t, err)

	res, err := f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.NoError(t, err)
	assert.Equal(t, StatusUnlocked, res.Status)
	assert.Nil(t, res.Provider)

	f.gw.AssertNotCalled(t, "GetAccessToken", mock.Anything)
	f.gw.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)
	assert.Empty(t, f.transactions(t))
}

func TestInitiate_InvalidInput(t *testing.T) {
	f := newFixture(t)
	testutil.SeedResource(t, f.db, 9, "Unpriced Notes", "0", false)
	ctx := context.Background()

	_, err := f.svc.Initiate(ctx, 3, 404, "0712345678")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.svc.Initiate(ctx, 3, 9, "0712345678")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	for _, phone := range []string{"", "12345", "0812345678", "abc"} {
		_, err = f.svc.Initiate(ctx, 3, 7, phone)
		assert.ErrorIs(t, err, ErrInvalidRequest, phone)
	}
	f.gw.AssertNotCalled(t, "GetAccessToken", mock.Anything)
}

func TestInitiate_TokenFailure(t *testing.T) {
	f := newFixture(t)
	f.gw.On("GetAccessToken", mock.Anything).Return("", &mpesa.TokenError{StatusCode: 401, Body: "bad credentials"})

	_, err := f.svc.Initiate(context.Background(), 3, 7, "0712345678")
	assert.ErrorIs(t, err, ErrUpstreamAuth)
	f.gw.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)

	var n int64
	require.NoError(t, f.db.Model(&domain.PaymentAttempt{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestInitiate_STKFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stkErr := &mpesa.STKError{
		Kind:       mpesa.KindHTTP,
		StatusCode: 400,
		Body:       `{"errorMessage":"Invalid PhoneNumber"}`,
		Cause:      errors.New("unexpected status 400 Bad Request"),
	}
	f.gw.On("GetAccessToken", mock.Anything).Return("access-token", nil)
	f.gw.On("InitiateSTKPush", mock.Anything, mock.Anything).Return(nil, stkErr)

	_, err := f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPaymentInitiationFailed)

	var initErr *InitiationError
	require.ErrorAs(t, err, &initErr)
	assert.Equal(t, stkErr.Body, initErr.Detail)

	var gotSTK *mpesa.STKError
	require.ErrorAs(t, err, &gotSTK)
	assert.Equal(t, mpesa.KindHTTP, gotSTK.Kind)

	assert.Empty(t, f.transactions(t))

	var attempts []domain.PaymentAttempt
	require.NoError(t, f.db.Find(&attempts).Error)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptRequested, attempts[0].State)
	assert.Contains(t, attempts[0].LastError, "Invalid PhoneNumber")
}

func TestIsPaidFor_UnknownResource(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.IsPaidFor(context.Background(), 3, 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInitiate_UnknownUser(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), 9, 7, "0712345678")
	assert.ErrorIs(t, err, ErrInvalidRequest)

	f.gw.AssertNotCalled(t, "GetAccessToken", mock.Anything)
	f.gw.AssertNotCalled(t, "InitiateSTKPush", mock.Anything, mock.Anything)
	var n int64
	require.NoError(t, f.db.Model(&domain.PaymentAttempt{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConfirm_DuplicateDeliveryKeepsRetryOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	expectPush(f)
	first, err := f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.NoError(t, err)

	f.gw.On("GetAccessToken", mock.Anything).Return("access-token", nil).Once()
	f.gw.On("InitiateSTKPush", mock.Anything, mock.Anything).
		Return(nil, &mpesa.STKError{Kind: mpesa.KindTransport, Cause: errors.New("reset")}).Once()
	_, err = f.svc.Initiate(ctx, 3, 7, "0712345678")
	require.ErrorIs(t, err, ErrPaymentInitiationFailed)

	body := paidCallback(t, "ws_CO_1", 200, "3:7")
	for i := 0; i < 2; i++ {
		out, err := f.svc.Confirm(ctx, body)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeConfirmed, out.Outcome)
	}

	var attempts []domain.PaymentAttempt
	require.NoError(t, f.db.Order("id").Find(&attempts).Error)
	require.Len(t, attempts, 2)
	assert.Equal(t, first.AttemptID, attempts[0].ID)
	assert.Equal(t, domain.AttemptConfirmed, attempts[0].State)
	assert.Equal(t, domain.AttemptRequested, attempts[1].State)
	assert.Empty(t, attempts[1].CheckoutRequestID)
	assert.Contains(t, attempts[1].LastError, "reset")
}

func TestConfirm_StorageFailureLogsPayload(t *testing.T) {
	f := newFixture(t)
	hook := logtest.NewGlobal()
	t.Cleanup(hook.Reset)
	require.NoError(t, f.db.Migrator().DropTable(&domain.CallbackEvent{}))

	body := paidCallback(t, "ws_CO_1", 200, "3:7")
	_, err := f.svc.Confirm(context.Background(), body)
	require.Error(t, err)

	var entry *logrus.Entry
	for _, e := range hook.AllEntries() {
		if e.Message == "Failed to apply callback" {
			entry = e
		}
	}
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, string(body), entry.Data["payload"])
	assert.Equal(t, "ws_CO_1", entry.Data["checkout_request_id"])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))
	assert.Equal(t, "ab", truncate("abcdef", 2))

	got := truncate("Malipo ya M-Pesa yamekataliwa ✓✓", 31)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Malipo ya M-Pesa yamekataliwa ", got)
}
