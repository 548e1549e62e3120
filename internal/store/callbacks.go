package store

import (
	"context"
	"time"

	"elimu_payments/internal/domain"

	"gorm.io/gorm"
)

// CallbackStore persists raw provider callbacks for audit and reconciliation
type CallbackStore struct {
	db *gorm.DB
}

func NewCallbackStore(db *gorm.DB) *CallbackStore {
	return &CallbackStore{db: db}
}

func (s *CallbackStore) WithTx(tx *gorm.DB) *CallbackStore {
	return &CallbackStore{db: tx}
}

// Save inserts a new callback record
func (s *CallbackStore) Save(ctx context.Context, ev *domain.CallbackEvent) error {
	return wrap("save callback", s.db.WithContext(ctx).Create(ev).Error)
}

// Get returns one callback or ErrNotFound
func (s *CallbackStore) Get(ctx context.Context, id uint) (*domain.CallbackEvent, error) {
	var ev domain.CallbackEvent
	if err := s.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, wrap("get callback", err)
	}
	return &ev, nil
}

// List returns callbacks with the given outcome (all when empty), newest first.
// Unresolved callbacks already handled by an operator are excluded when pendingOnly is set.
func (s *CallbackStore) List(ctx context.Context, outcome domain.CallbackOutcome, pendingOnly bool, page, pageSize int) ([]domain.CallbackEvent, int64, error) {
	query := s.db.WithContext(ctx).Model(&domain.CallbackEvent{})
	if outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}
	if pendingOnly {
		query = query.Where("resolved_at IS NULL")
	}
	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, wrap("count callbacks", err)
	}
	page, size := normalizePage(page, pageSize)
	var out []domain.CallbackEvent
	if err := query.Order("received_at desc").Order("id desc").
		Offset((page - 1) * size).
		Limit(size).
		Find(&out).Error; err != nil {
		return nil, 0, wrap("list callbacks", err)
	}
	return out, total, nil
}

// MarkResolved records an operator's attribution of an unresolved callback.
// It returns false when the callback was not unresolved or was already resolved.
func (s *CallbackStore) MarkResolved(ctx context.Context, id, userID, resourceID uint, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&domain.CallbackEvent{}).
		Where("id = ? AND outcome = ? AND resolved_at IS NULL", id, domain.OutcomeUnresolved).
		Updates(map[string]any{
			"resolved_user_id":     userID,
			"resolved_resource_id": resourceID,
			"resolved_at":          at,
		})
	if res.Error != nil {
		return false, wrap("resolve callback", res.Error)
	}
	return res.RowsAffected == 1, nil
}
