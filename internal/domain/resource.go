package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Resource is the catalog entry for a downloadable learning material.
// The catalog is maintained elsewhere; payments only read it.
type Resource struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Title     string          `gorm:"size:255;not null;index" json:"title"`
	Category  string          `gorm:"size:20;index:idx_resources_category_level_term,priority:1" json:"category"`
	Level     string          `gorm:"size:20;index:idx_resources_category_level_term,priority:2" json:"level,omitempty"`
	Term      string          `gorm:"size:5;index:idx_resources_category_level_term,priority:3" json:"term,omitempty"`
	IsFree    bool            `gorm:"not null" json:"is_free"`
	Price     decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"price"`
	FileKey   string          `gorm:"size:512" json:"-"`
	CreatedAt time.Time       `gorm:"index" json:"created_at"`
}
