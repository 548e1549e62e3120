// Package testutil provides an in-memory database for package tests.
package testutil

import (
	"fmt"
	"testing"

	"elimu_payments/internal/db"
	"elimu_payments/internal/domain"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB returns a migrated, isolated in-memory sqlite database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", uuid.NewString())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	// sqlite serialises writers anyway; one connection avoids "database is locked"
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// SeedUser inserts a user with the given id and role.
func SeedUser(t testing.TB, gdb *gorm.DB, id uint, role string) *domain.User {
	t.Helper()
	u := &domain.User{ID: id, Email: fmt.Sprintf("user%d@example.com", id), FullName: fmt.Sprintf("User %d", id), Role: role}
	require.NoError(t, gdb.Omit("Wallet").Create(u).Error)
	return u
}

// SeedResource inserts a catalog resource.
func SeedResource(t testing.TB, gdb *gorm.DB, id uint, title, price string, free bool) *domain.Resource {
	t.Helper()
	r := &domain.Resource{
		ID:       id,
		Title:    title,
		Category: "NOTES",
		IsFree:   free,
		Price:    decimal.RequireFromString(price),
	}
	require.NoError(t, gdb.Create(r).Error)
	return r
}
