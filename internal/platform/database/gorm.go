// File: internal/platform/database/gorm.go
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auth_api/internal/config"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver for DB_DRIVER_NAME=postgres
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewGORM creates a new GORM database instance for the configured driver.
func NewGORM(cfg *config.Config, logger *zap.Logger) (*gorm.DB, error) {
	dialector, err := newDialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: NewGormLogger(logger.Named("gorm"), cfg.LogLevel),
		// Driver errors are kept untranslated so ConstraintName can name the clashing column.
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Connection Pool Settings
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.DBDriver == config.DriverSQLite {
		// SQLite serializes writers; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
		sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
		sqlDB.SetConnMaxLifetime(cfg.DBConnMaxLifetime)
	}

	if err = sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to the database.",
		zap.String("driver", cfg.DBDriver),
		zap.String("driver_name", cfg.DBDriverName),
	)
	return db, nil
}

func newDialector(cfg *config.Config) (gorm.Dialector, error) {
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dsn := cfg.DBSource
		if dsn == "" {
			dsn = cfg.PostgresDSN()
		}
		return postgres.New(postgres.Config{
			DSN:        dsn,
			DriverName: cfg.DBDriverName,
		}), nil
	case config.DriverSQLite:
		return sqlite.Open(SQLiteDSN(cfg.DBPath)), nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.DBDriver)
}

// SQLiteDSN enables foreign keys and a busy timeout unless the path already carries options.
func SQLiteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_foreign_keys=on&_busy_timeout=5000"
}

// Dialect reports the migration dialect name for db.
func Dialect(db *gorm.DB) string {
	if db.Dialector.Name() == "sqlite" {
		return config.DriverSQLite
	}
	return config.DriverPostgres
}

// Ping verifies the connection is alive.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the GORM database connection.
func Close(db *gorm.DB, logger *zap.Logger) {
	if db == nil {
		return
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Error getting underlying SQL DB for closing", zap.Error(err))
		return
	}
	logger.Info("Closing database connection...")
	if err := sqlDB.Close(); err != nil {
		logger.Error("Error closing database connection", zap.Error(err))
		return
	}
	logger.Info("Database connection closed.")
}
