package database

import (
	"fmt"
	"time"

	"bailian-gateway/internal/config"
	applogger "bailian-gateway/internal/logger"
	"bailian-gateway/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

func InitDB(cfg config.DatabaseConfig, admin config.AdminConfig) (*gorm.DB, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	// Configure GORM logger
	gormLogger := logger.New(
		applogger.Logger,
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogLevel(),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("error getting sql.DB: %v", err)
	}
	if cfg.Driver == DriverSQLite {
		// A single connection keeps in-memory databases shared.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := autoMigrate(db); err != nil {
		return nil, fmt.Errorf("error migrating database: %v", err)
	}
	if err := RunMigrations(db, GetMigrations(admin)); err != nil {
		return nil, err
	}

	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case DriverPostgres, "":
		return postgres.Open(cfg.URL), nil
	case DriverMySQL:
		return mysql.Open(cfg.URL), nil
	case DriverSQLite:
		return sqlite.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Driver)
	}
}

func gormLogLevel() logger.LogLevel {
	if applogger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		return logger.Info
	}
	return logger.Warn
}

func autoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.MigrationRecord{},
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.APICall{},
		&models.AuditLog{},
	)
}
