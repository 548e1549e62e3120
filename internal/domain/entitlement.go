package domain

import "time"

// Entitlement records that a user has paid for a resource.
// The (user, resource) pair is unique.
type Entitlement struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;uniqueIndex:ux_paid_resources_user_resource,priority:1" json:"user_id"`
	ResourceID uint      `gorm:"not null;uniqueIndex:ux_paid_resources_user_resource,priority:2;index" json:"resource_id"`
	PaidAt     time.Time `gorm:"autoCreateTime" json:"paid_at"`

	User     User     `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Resource Resource `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// TableName keeps the table name used by the catalog side
func (Entitlement) TableName() string { return "paid_resources" }
