package store

import (
	"context"
	"testing"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserUpsert(t *testing.T) {
	db := testutil.NewDB(t)
	users := NewUserStore(db)
	ctx := context.Background()

	require.NoError(t, users.Upsert(ctx, &domain.User{ID: 5, Email: "amina@example.com", Role: domain.RoleUser}))
	require.NoError(t, users.Upsert(ctx, &domain.User{ID: 5, Email: "amina@example.com", FullName: "Amina W.", Role: domain.RoleAdmin}))

	u, err := users.Get(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, "Amina W.", u.FullName)

	ok, err := users.Exists(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = users.Exists(ctx, 6)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = users.Get(ctx, 6)
	assert.ErrorIs(t, err, ErrNotFound)
}
