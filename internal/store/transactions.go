package store

import (
	"context"
	"fmt"
	"time"

	"elimu_payments/internal/domain"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStore is the append-only payment log
type TransactionStore struct {
	db *gorm.DB
}

// NewTransactionStore creates a transaction log on db
func NewTransactionStore(db *gorm.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

// WithTx returns a copy bound to tx
func (s *TransactionStore) WithTx(tx *gorm.DB) *TransactionStore {
	return &TransactionStore{db: tx}
}

// Record appends a transaction. userID is nil when the payer is unknown.
func (s *TransactionStore) Record(ctx context.Context, userID *uint, amount decimal.Decimal, method domain.PaymentMethod, status domain.TransactionStatus) (uint, error) {
	if amount.IsNegative() {
		return 0, ErrInvalidAmount
	}
	if !method.Valid() || !status.Valid() {
		return 0, fmt.Errorf("record transaction: invalid method %q or status %q", method, status)
	}
	t := domain.Transaction{
		UserID: userID,
		Amount: amount.Round(2),
		Method: method,
		Status: status,
	}
	if err := s.db.WithContext(ctx).Create(&t).Error; err != nil {
		return 0, wrap("record transaction", err)
	}
	return t.ID, nil
}

// TransactionFilter narrows List
type TransactionFilter struct {
	UserID   *uint
	Status   domain.TransactionStatus
	Method   domain.PaymentMethod
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// List returns one page of transactions, newest first, and the total match count.
func (s *TransactionStore) List(ctx context.Context, f TransactionFilter) ([]domain.Transaction, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.Transaction{})
	if f.UserID != nil {
		query = query.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Method != "" {
		query = query.Where("method = ?", f.Method)
	}
	if f.From != nil {
		query = query.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		query = query.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap("count transactions", err)
	}

	page, size := normalizePage(f.Page, f.PageSize)
	var txs []domain.Transaction
	if err := query.Order("created_at desc").Order("id desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&txs).Error; err != nil {
		return nil, 0, wrap("list transactions", err)
	}
	return txs, total, nil
}

// ListForUser is List scoped to one user
func (s *TransactionStore) ListForUser(ctx context.Context, userID uint, page, pageSize int) ([]domain.Transaction, int64, error) {
	return s.List(ctx, TransactionFilter{UserID: &userID, Page: page, PageSize: pageSize})
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	return page, size
}
