package store

import (
	"context"
	"testing"
	"time"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestCallbackListAndResolve(t *testing.T) {
	db := testutil.NewDB(t)
	callbacks := NewCallbackStore(db)
	ctx := context.Background()

	confirmed := &domain.CallbackEvent{Outcome: domain.OutcomeConfirmed, Payload: datatypes.JSON(`{}`)}
	unresolved := &domain.CallbackEvent{
		Outcome:          domain.OutcomeUnresolved,
		Reason:           "unknown user",
		AccountReference: "99:7",
		Payload:          datatypes.JSON(`{}`),
	}
	require.NoError(t, callbacks.Save(ctx, confirmed))
	require.NoError(t, callbacks.Save(ctx, unresolved))

	list, total, err := callbacks.List(ctx, domain.OutcomeUnresolved, true, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, unresolved.ID, list[0].ID)

	ok, err := callbacks.MarkResolved(ctx, confirmed.ID, 3, 7, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "only unresolved callbacks can be resolved")

	ok, err = callbacks.MarkResolved(ctx, unresolved.ID, 3, 7, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = callbacks.MarkResolved(ctx, unresolved.ID, 3, 7, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second resolution is a no-op")

	got, err := callbacks.Get(ctx, unresolved.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResolvedUserID)
	assert.Equal(t, uint(3), *got.ResolvedUserID)
	assert.NotNil(t, got.ResolvedAt)

	_, total, err = callbacks.List(ctx, domain.OutcomeUnresolved, true, 1, 20)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, total, err = callbacks.List(ctx, "", false, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
}
