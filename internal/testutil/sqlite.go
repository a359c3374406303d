// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"auth_api/internal/config"
	"auth_api/internal/migrations"
	"auth_api/internal/platform/database"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// NewMigratedSQLite opens a file-backed SQLite database in a temp dir and applies the embedded migrations.
func NewMigratedSQLite(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &config.Config{
		DBDriver: config.DriverSQLite,
		DBPath:   filepath.Join(t.TempDir(), "auth_api_test.db"),
		LogLevel: "error",
	}
	db, err := database.NewGORM(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db, zap.NewNop()) })

	m, err := migrations.NewFSMigrator(db, migrations.EmbeddedFS(config.DriverSQLite), zap.NewNop())
	require.NoError(t, err)
	_, err = m.MigrateUp(context.Background())
	require.NoError(t, err)
	return db
}

// TestConfig returns a config suitable for unit tests: short-lived tokens and no revocation cache.
func TestConfig() *config.Config {
	return &config.Config{
		GinMode:                   "test",
		JWTSecretKey:              "test-secret",
		JWTIssuer:                 "auth_api_test",
		JWTUserAccessTokenExpiry:  15 * time.Minute,
		JWTUserRefreshTokenExpiry: 30 * 24 * time.Hour,
		JWTTechAccessTokenExpiry:  24 * time.Hour,
		JWTTechRefreshTokenExpiry: 365 * 24 * time.Hour,
	}
}
