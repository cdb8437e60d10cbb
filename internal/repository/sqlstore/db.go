// Package sqlstore persists the ledger and the inventory read models with gorm.
package sqlstore

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/mamadbah2/grainloss/internal/domain/models"
	"github.com/mamadbah2/grainloss/pkg/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	slowQueryThreshold = 200 * time.Millisecond
)

// siloRow stores silo capacity; residency is derived from batches.
type siloRow struct {
	Number   int `gorm:"primaryKey;autoIncrement:false"`
	Capacity float64
}

func (siloRow) TableName() string { return "silos" }

// Open connects to the configured SQL database and migrates the schema.
func Open(driver, dsn string, log *zap.Logger) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.NewGormLogger(log, slowQueryThreshold),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if driver == DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("access sqlite pool: %w", err)
		}
		// sqlite serializes writers; a single connection keeps replaces and reads ordered.
		sqlDB.SetMaxOpenConns(1)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates every table this package owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.HistoricalLossRecord{},
		&models.GrainBatch{},
		&models.BatchMovement{},
		&models.GrainVariety{},
		&models.FumigationEvent{},
		&siloRow{},
	); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}
