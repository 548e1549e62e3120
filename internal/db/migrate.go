package db

import (
	"elimu_payments/internal/domain" // Importing domain models

	"github.com/sirupsen/logrus" // Logging library
	"gorm.io/driver/mysql"       // MySQL driver for GORM
	"gorm.io/gorm"               // GORM ORM library
	"gorm.io/gorm/logger"        // GORM logger levels
)

// Models lists every table owned or read by the service, in dependency order
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Wallet{},
		&domain.Resource{},
		&domain.Transaction{},
		&domain.Entitlement{},
		&domain.PaymentAttempt{},
		&domain.CallbackEvent{},
	}
}

// Connect opens a MySQL connection pool for dsn
func Connect(dsn string, verbose bool) (*gorm.DB, error) {
	level := logger.Warn // Only slow queries and errors by default
	if verbose {
		level = logger.Info // Log every statement
	}
	return gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(level)})
}

// Migrate performs automatic migration for the database schema
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	logrus.Info("Migration completed.") // Log successful migration
	return nil
}
