package database

import (
	"fmt"
	"regexp"
	"time"

	"sales-ledger/internal/config"
	"sales-ledger/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const connectAttempts = 5

// Connect opens the configured database (waiting for it to come up),
// then applies the schema.
func Connect(cfg config.DatabaseConfig, log *zap.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	for i := 0; i < connectAttempts; i++ {
		db, err = Open(cfg.Driver, cfg.DSN, cfg.Debug)
		if err == nil {
			break
		}
		log.Warn("database not ready, retrying",
			zap.Int("attempt", i+1), zap.Int("of", connectAttempts), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("connect after %d attempts: %w", connectAttempts, err)
	}
	log.Info("connected to database", zap.String("driver", cfg.Driver), zap.String("dsn", MaskDSN(cfg.DSN)))

	if cfg.Migrations {
		if err := RunMigrations(cfg.DSN, cfg.MigrationsDir); err != nil {
			return nil, fmt.Errorf("sql migrations: %w", err)
		}
		log.Info("sql migrations applied", zap.String("dir", cfg.MigrationsDir))
	} else {
		if err := Migrate(db); err != nil {
			return nil, err
		}
		log.Info("database schema synced")
	}

	return db, nil
}

// Open returns a gorm handle for driver/dsn without touching the schema.
func Open(driver, dsn string, debug bool) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	level := logger.Silent
	if debug {
		level = logger.Info
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if driver != "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}
	return db, nil
}

// Migrate runs AutoMigrate over every model.
func Migrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

var passwordPattern = regexp.MustCompile(`(:)([^:@/]+)(@)|(password=)(\S+)`)

// MaskDSN hides the password part of a mysql/postgres DSN for logging.
func MaskDSN(dsn string) string {
	return passwordPattern.ReplaceAllStringFunc(dsn, func(m string) string {
		if len(m) > 9 && m[:9] == "password=" {
			return "password=***"
		}
		return ":***@"
	})
}
