// Package testing provides test utilities and database setup for testing the storefront backend
package testing

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/kitkade/kitkade-backend/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB wraps an in-memory database for tests. Every call to NewTestDB gets
// a fresh schema, so tests stay independent without external services.
type TestDB struct {
	DB *gorm.DB
}

// NewTestDB creates a fresh in-memory database with the full schema migrated
func NewTestDB() (*TestDB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	// An in-memory database exists per connection, so the pool must stay at one
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.Customer{},
		&models.Order{},
		&models.OTPSession{},
		&models.DeliveryStatus{},
		&models.DeliveryStatusEvent{},
		&models.AuditLog{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate test schema: %w", err)
	}

	return &TestDB{DB: db}, nil
}

// Close releases the underlying connection
func (t *TestDB) Close() error {
	sqlDB, err := t.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TestWithDB runs fn against a fresh test database and cleans up afterwards
func TestWithDB(fn func(testDB *TestDB) error) error {
	testDB, err := NewTestDB()
	if err != nil {
		return err
	}
	defer func() {
		_ = testDB.Close()
	}()

	return fn(testDB)
}
