package config

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"ebus_manager/internal/logger"
	"ebus_manager/internal/models"
)

// OpenDatabase opens the GORM connection using the configured SQL driver.
func OpenDatabase(cfg *Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		sqlDB, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open lib/pq connection: %w", err)
		}
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	default:
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.GormLogger(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logrus.WithField("driver", cfg.DBDriver).Info("Database connection established")
	return db, nil
}

// partialIndexes keep seat allocations exclusive among non-cancelled rows.
var partialIndexes = []string{
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_seat_alloc_shift_seat_active
		ON seat_allocations (shift_id, seat_number) WHERE status <> 'cancelled' AND deleted_at IS NULL`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_seat_alloc_shift_student_active
		ON seat_allocations (shift_id, student_id) WHERE status <> 'cancelled' AND deleted_at IS NULL`,
}

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.AdminUser{},
		&models.Student{},
		&models.Bus{},
		&models.Driver{},
		&models.Route{},
		&models.RouteStop{},
		&models.Shift{},
		&models.SeatAllocation{},
		&models.GPSLog{},
		&models.Notification{},
	)
	if err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	for _, stmt := range partialIndexes {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}
