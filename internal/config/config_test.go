package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withEnvFile writes vars to a temporary env file and points ENV_FILE at it.
// Each key is cleared first and restored after the test, since godotenv writes
// straight into the process environment.
func withEnvFile(t *testing.T, vars map[string]string) {
	t.Helper()
	var b strings.Builder
	for k, v := range vars {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
		fmt.Fprintf(&b, "%s=%s\n", k, v)
	}
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	t.Setenv("ENV_FILE", path)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("GIN_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DBDriver)
	assert.Equal(t, "auth_db", cfg.DBName)
	assert.Equal(t, 30*time.Second, cfg.ServerTimeout)
	assert.Equal(t, 15*time.Minute, cfg.JWTUserAccessTokenExpiry)
	assert.Equal(t, 24*time.Hour, cfg.JWTTechAccessTokenExpiry)
	assert.Equal(t, "@hourly", cfg.TokenCleanupSchedule)
	assert.Equal(t, insecureDevSecret, cfg.JWTSecretKey)
	assert.Contains(t, cfg.DBSource, "dbname=auth_db")
}

func TestLoad_EnvFileOverrides(t *testing.T) {
	withEnvFile(t, map[string]string{
		"DB_HOST":                              "db",
		"DB_PORT":                              "6543",
		"JWT_SECRET_KEY":                       "s3cr3t",
		"JWT_USER_ACCESS_TOKEN_EXPIRE_SECONDS": "60",
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db", cfg.DBHost)
	assert.Equal(t, "db:6543", cfg.DBAddress())
	assert.Equal(t, "s3cr3t", cfg.JWTSecretKey)
	assert.Equal(t, time.Minute, cfg.JWTUserAccessTokenExpiry)
}

func TestLoad_ReleaseRequiresSecret(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("GIN_MODE", "release")
	t.Setenv("JWT_SECRET_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))
	t.Setenv("DB_DRIVER", "oracle")

	_, err := Load()
	require.Error(t, err)
}

func TestConfig_PostgresURL(t *testing.T) {
	cfg := &Config{DBHost: "db", DBPort: "5432", DBUser: "auth", DBPassword: "p@ss", DBName: "auth_db", DBSSLMode: "disable"}
	assert.Equal(t, "postgres://auth:p%40ss@db:5432/auth_db?sslmode=disable", cfg.PostgresURL())
}

func TestConfig_AllowedOrigins(t *testing.T) {
	cfg := &Config{CORSAllowedOrigins: " https://a.example, ,https://b.example"}
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins())

	cfg.CORSAllowedOrigins = ""
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins())
}
