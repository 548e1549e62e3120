package store

import (
	"context"

	"elimu_payments/internal/domain" // Domain models

	"github.com/shopspring/decimal" // Precise monetary values
	"gorm.io/gorm"                  // GORM ORM library
	"gorm.io/gorm/clause"           // ON CONFLICT support
)

// WalletStore is the per-user balance ledger
type WalletStore struct {
	db *gorm.DB
}

// NewWalletStore creates a wallet store on db
func NewWalletStore(db *gorm.DB) *WalletStore {
	return &WalletStore{db: db}
}

// WithTx returns a copy bound to tx
func (s *WalletStore) WithTx(tx *gorm.DB) *WalletStore {
	return &WalletStore{db: tx}
}

// GetOrCreate returns the user's wallet, creating an empty one on first access.
// Concurrent first accesses for the same user converge on a single row.
func (s *WalletStore) GetOrCreate(ctx context.Context, userID uint) (*domain.Wallet, error) {
	db := s.db.WithContext(ctx)
	fresh := domain.Wallet{UserID: userID, Balance: decimal.Zero}
	// Insert if missing; the unique index on user_id makes a racing insert a no-op
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&fresh).Error; err != nil {
		return nil, wrap("create wallet", err)
	}
	var wallet domain.Wallet
	if err := db.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, wrap("get wallet", err)
	}
	return &wallet, nil
}

// TopUp credits amount to the user's wallet and appends a WALLET transaction.
// Amounts must be positive with at most two decimal places.
func (s *WalletStore) TopUp(ctx context.Context, userID uint, amount decimal.Decimal) (decimal.Decimal, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Round(2)) {
		return decimal.Zero, ErrInvalidAmount
	}
	if _, err := s.GetOrCreate(ctx, userID); err != nil {
		return decimal.Zero, err
	}

	var balance decimal.Decimal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Single atomic increment, never read-modify-write
		res := tx.Model(&domain.Wallet{}).
			Where("user_id = ?", userID).
			Update("balance", gorm.Expr("balance + CAST(? AS DECIMAL(12,2))", amount.StringFixed(2)))
		if res.Error != nil {
			return wrap("credit wallet", res.Error)
		}
		if res.RowsAffected == 0 {
			return wrap("credit wallet", gorm.ErrRecordNotFound)
		}
		uid := userID
		if _, err := NewTransactionStore(tx).Record(ctx, &uid, amount, domain.MethodWallet, domain.StatusSuccess); err != nil {
			return err
		}
		var wallet domain.Wallet
		if err := tx.Where("user_id = ?", userID).First(&wallet).Error; err != nil {
			return wrap("reload wallet", err)
		}
		balance = wallet.Balance
		return nil
	})
	if err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}
