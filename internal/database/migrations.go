package database

import (
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
)

// PaymentColumnsVersion is the migration that adds orders.payment_intent_id
// and orders.payment_status. Databases below it still accept orders.
const PaymentColumnsVersion int64 = 7

// PaymentIntentIndexVersion is the migration that allows each payment intent
// on at most one order.
const PaymentIntentIndexVersion int64 = 9

// RunMigrations executes all pending database migrations
func RunMigrations(db *sql.DB, migrationsDir string, logger *zap.Logger) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	logger.Info("Checking for pending migrations...", zap.String("dir", migrationsDir))

	if err := goose.Up(db, migrationsDir); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	if version < PaymentColumnsVersion {
		logger.Warn("Orders table has no payment columns; card orders are stored without payment details",
			zap.Int64("version", version))
	}

	logger.Info("Migrations completed successfully", zap.Int64("version", version))
	return nil
}

// MigrateTo applies migrations up to and including version.
func MigrateTo(db *sql.DB, migrationsDir string, version int64) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.UpTo(db, migrationsDir, version); err != nil {
		return fmt.Errorf("failed to migrate to version %d: %w", version, err)
	}
	return nil
}

// GetMigrationStatus returns the current migration status
func GetMigrationStatus(db *sql.DB, migrationsDir string) error {
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.Status(db, migrationsDir)
}
