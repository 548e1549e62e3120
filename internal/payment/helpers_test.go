package payment

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/mpesa"
	"elimu_payments/internal/testutil"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GetAccessToken(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) InitiateSTKPush(ctx context.Context, p mpesa.STKPushParams) (*mpesa.STKPushResponse, error) {
	args := m.Called(ctx, p)
	resp, _ := args.Get(0).(*mpesa.STKPushResponse)
	return resp, args.Error(1)
}

type published struct {
	Subject string
	Data    []byte
}

type recordingBus struct {
	mu       sync.Mutex
	messages []published
}

func (b *recordingBus) Publish(subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, published{Subject: subject, Data: data})
	return nil
}

func (b *recordingBus) subjects() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]string, 0, len(b.messages))
	for _, m := range b.messages {
		out = append(out, m.Subject)
	}
	return out
}

type fixture struct {
	db  *gorm.DB
	gw  *mockGateway
	bus *recordingBus
	svc *Service
}

// newFixture seeds user 3 and the paid resource 7 priced at 200
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 3, domain.RoleUser)
	testutil.SeedResource(t, db, 7, "Form 4 Chemistry Revision", "200", false)

	gw := new(mockGateway)
	bus := &recordingBus{}
	return &fixture{db: db, gw: gw, bus: bus, svc: NewService(db, gw, bus)}
}

func (f *fixture) transactions(t *testing.T) []domain.Transaction {
	t.Helper()
	var out []domain.Transaction
	require.NoError(t, f.db.Order("id").Find(&out).Error)
	return out
}

func (f *fixture) entitlementCount(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.Entitlement{}).Count(&n).Error)
	return n
}

type item struct {
	Name  string `json:"Name"`
	Value any    `json:"Value"`
}

func callbackBody(t *testing.T, checkoutID string, resultCode int, items ...item) []byte {
	t.Helper()
	stk := map[string]any{
		"MerchantRequestID": "29115-34620561-1",
		"CheckoutRequestID": checkoutID,
		"ResultCode":        resultCode,
		"ResultDesc":        "The service request is processed successfully.",
	}
	if len(items) > 0 {
		stk["CallbackMetadata"] = map[string]any{"Item": items}
	}
	b, err := json.Marshal(map[string]any{"Body": map[string]any{"stkCallback": stk}})
	require.NoError(t, err)
	return b
}

func paidCallback(t *testing.T, checkoutID string, amount any, ref string) []byte {
	items := []item{
		{Name: "Amount", Value: amount},
		{Name: "MpesaReceiptNumber", Value: "NLJ7RT61SV"},
		{Name: "PhoneNumber", Value: 254712345678},
	}
	if ref != "" {
		items = append(items, item{Name: "AccountReference", Value: ref})
	}
	return callbackBody(t, checkoutID, 0, items...)
}
