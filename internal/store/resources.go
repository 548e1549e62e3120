package store

import (
	"context"
	"strings"

	"elimu_payments/internal/domain"

	"gorm.io/gorm"
)

// ResourceStore reads the resource catalog
type ResourceStore struct {
	db *gorm.DB
}

func NewResourceStore(db *gorm.DB) *ResourceStore {
	return &ResourceStore{db: db}
}

func (s *ResourceStore) WithTx(tx *gorm.DB) *ResourceStore {
	return &ResourceStore{db: tx}
}

// Get returns the resource or ErrNotFound
func (s *ResourceStore) Get(ctx context.Context, id uint) (*domain.Resource, error) {
	var r domain.Resource
	if err := s.db.WithContext(ctx).First(&r, id).Error; err != nil {
		return nil, wrap("get resource", err)
	}
	return &r, nil
}

// Exists reports whether a resource row exists
func (s *ResourceStore) Exists(ctx context.Context, id uint) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&domain.Resource{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, wrap("check resource", err)
	}
	return n > 0, nil
}

// ResourceFilter narrows List. Empty fields match everything.
type ResourceFilter struct {
	Query    string // Case-insensitive title match
	Category string
	Level    string
	Term     string
	Free     *bool
}

// List returns matching resources, newest first
func (s *ResourceStore) List(ctx context.Context, f ResourceFilter) ([]domain.Resource, error) {
	query := s.db.WithContext(ctx).Model(&domain.Resource{})
	if q := strings.TrimSpace(f.Query); q != "" {
		query = query.Where("LOWER(title) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	if f.Category != "" {
		query = query.Where("category = ?", f.Category)
	}
	if f.Level != "" {
		query = query.Where("level = ?", f.Level)
	}
	if f.Term != "" {
		query = query.Where("term = ?", f.Term)
	}
	if f.Free != nil {
		query = query.Where("is_free = ?", *f.Free)
	}
	var out []domain.Resource
	if err := query.Order("created_at desc").Order("id desc").Find(&out).Error; err != nil {
		return nil, wrap("list resources", err)
	}
	return out, nil
}
