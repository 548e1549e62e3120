package store

import (
	"context"

	"elimu_payments/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EntitlementStore holds which users have unlocked which resources
type EntitlementStore struct {
	db *gorm.DB
}

func NewEntitlementStore(db *gorm.DB) *EntitlementStore {
	return &EntitlementStore{db: db}
}

func (s *EntitlementStore) WithTx(tx *gorm.DB) *EntitlementStore {
	return &EntitlementStore{db: tx}
}

// IsUnlocked reports whether the pair has been paid for
func (s *EntitlementStore) IsUnlocked(ctx context.Context, userID, resourceID uint) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&domain.Entitlement{}).
		Where("user_id = ? AND resource_id = ?", userID, resourceID).
		Count(&n).Error
	if err != nil {
		return false, wrap("check entitlement", err)
	}
	return n > 0, nil
}

// Unlock grants the pair. created is false when it was already granted.
func (s *EntitlementStore) Unlock(ctx context.Context, userID, resourceID uint) (bool, error) {
	e := domain.Entitlement{UserID: userID, ResourceID: resourceID}
	res := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&e)
	if res.Error != nil {
		return false, wrap("unlock resource", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListForUser returns the user's entitlements, most recent first
func (s *EntitlementStore) ListForUser(ctx context.Context, userID uint) ([]domain.Entitlement, error) {
	var out []domain.Entitlement
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("paid_at desc").
		Find(&out).Error; err != nil {
		return nil, wrap("list entitlements", err)
	}
	return out, nil
}
