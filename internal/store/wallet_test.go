package store

import (
	"context"
	"sync"
	"testing"

	"elimu_payments/internal/domain"
	"elimu_payments/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletGetOrCreate(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, domain.RoleUser)
	wallets := NewWalletStore(db)
	ctx := context.Background()

	w1, err := wallets.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.True(t, w1.Balance.IsZero())

	w2, err := wallets.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, w1.ID, w2.ID)

	var n int64
	require.NoError(t, db.Model(&domain.Wallet{}).Where("user_id = ?", 1).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestWalletGetOrCreate_Concurrent(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, domain.RoleUser)
	wallets := NewWalletStore(db)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := wallets.GetOrCreate(context.Background(), 1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	var n int64
	require.NoError(t, db.Model(&domain.Wallet{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestWalletTopUp_InvalidAmount(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, domain.RoleUser)
	wallets := NewWalletStore(db)
	ctx := context.Background()

	_, err := wallets.TopUp(ctx, 1, decimal.NewFromInt(50))
	require.NoError(t, err)

	for _, amount := range []string{"0", "-1", "-0.01", "10.001"} {
		t.Run(amount, func(t *testing.T) {
			_, err := wallets.TopUp(ctx, 1, decimal.RequireFromString(amount))
			assert.ErrorIs(t, err, ErrInvalidAmount)

			w, err := wallets.GetOrCreate(ctx, 1)
			require.NoError(t, err)
			assert.True(t, w.Balance.Equal(decimal.NewFromInt(50)), "balance changed to %s", w.Balance)
		})
	}
}

func TestWalletTopUp_RecordsTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, domain.RoleUser)
	wallets := NewWalletStore(db)

	balance, err := wallets.TopUp(context.Background(), 1, decimal.RequireFromString("150.50"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("150.50")), "got %s", balance)

	var txs []domain.Transaction
	require.NoError(t, db.Find(&txs).Error)
	require.Len(t, txs, 1)
	require.NotNil(t, txs[0].UserID)
	assert.Equal(t, uint(1), *txs[0].UserID)
	assert.Equal(t, domain.MethodWallet, txs[0].Method)
	assert.Equal(t, domain.StatusSuccess, txs[0].Status)
}

func TestWalletTopUp_ConcurrentSum(t *testing.T) {
	db := testutil.NewDB(t)
	testutil.SeedUser(t, db, 1, domain.RoleUser)
	wallets := NewWalletStore(db)

	amounts := []int64{5, 10, 20, 40, 80, 160, 320, 640, 1280, 2560}
	var wg sync.WaitGroup
	for _, a := range amounts {
		wg.Add(1)
		go func(a int64) {
			defer wg.Done()
			_, err := wallets.TopUp(context.Background(), 1, decimal.NewFromInt(a))
			assert.NoError(t, err)
		}(a)
	}
	wg.Wait()

	w, err := wallets.GetOrCreate(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(5115)), "got %s", w.Balance)
}
