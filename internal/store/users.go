package store

import (
	"context"

	"elimu_payments/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserStore reads users provisioned by the identity provider
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) WithTx(tx *gorm.DB) *UserStore {
	return &UserStore{db: tx}
}

// Get returns the user or ErrNotFound
func (s *UserStore) Get(ctx context.Context, id uint) (*domain.User, error) {
	var u domain.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		return nil, wrap("get user", err)
	}
	return &u, nil
}

// Exists reports whether a user row exists
func (s *UserStore) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, wrap("check user", err)
	}
	return n > 0, nil
}

// Upsert creates or updates a user by id. Used by local tooling only.
func (s *UserStore) Upsert(ctx context.Context, u *domain.User) error {
	err := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "full_name", "role"}),
		}).
		Create(u).Error
	return wrap("upsert user", err)
}
