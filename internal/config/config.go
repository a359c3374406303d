// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	// insecureDevSecret is only ever used outside release mode.
	insecureDevSecret = "insecure-development-secret-change-me"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode            string        `mapstructure:"GIN_MODE"`
	ServerHost         string        `mapstructure:"SERVER_HOST"`
	ServerPort         string        `mapstructure:"SERVER_PORT"`
	ServerTimeout      time.Duration `mapstructure:"SERVER_TIMEOUT_SECONDS"`
	CORSAllowedOrigins string        `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`      // postgres | sqlite
	DBDriverName      string        `mapstructure:"DB_DRIVER_NAME"` // pgx | postgres (lib/pq)
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBPath            string        `mapstructure:"DB_PATH"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	DBSource          string        `mapstructure:"DB_SOURCE"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// JWT Configuration
	JWTSecretKey              string        `mapstructure:"JWT_SECRET_KEY"`
	JWTIssuer                 string        `mapstructure:"JWT_ISSUER"`
	JWTUserAccessTokenExpiry  time.Duration `mapstructure:"JWT_USER_ACCESS_TOKEN_EXPIRE_SECONDS"`
	JWTUserRefreshTokenExpiry time.Duration `mapstructure:"JWT_USER_REFRESH_TOKEN_EXPIRE_SECONDS"`
	JWTTechAccessTokenExpiry  time.Duration `mapstructure:"JWT_TECH_ACCESS_TOKEN_EXPIRE_SECONDS"`
	JWTTechRefreshTokenExpiry time.Duration `mapstructure:"JWT_TECH_REFRESH_TOKEN_EXPIRE_SECONDS"`
	TokenRevocationCacheTTL   time.Duration `mapstructure:"TOKEN_REVOCATION_CACHE_SECONDS"`

	// Cron Jobs
	TokenCleanupSchedule string `mapstructure:"TOKEN_CLEANUP_SCHEDULE"`

	// Google OAuth Configuration
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `mapstructure:"GOOGLE_REDIRECT_URI"`

	// Migrations
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	// Initial admin created by `auth_api init`
	InitAdminUsername string `mapstructure:"INIT_ADMIN_USERNAME"`
	InitAdminEmail    string `mapstructure:"INIT_ADMIN_EMAIL"`
	InitAdminPassword string `mapstructure:"INIT_ADMIN_PASSWORD"`
}

// Load reads the env file named by ENV_FILE (default ".env") if present, then environment variables.
func Load() (*Config, error) {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("error loading env file %s: %w", envFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Convert duration fields
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.JWTUserAccessTokenExpiry = time.Duration(v.GetInt64("JWT_USER_ACCESS_TOKEN_EXPIRE_SECONDS")) * time.Second
	cfg.JWTUserRefreshTokenExpiry = time.Duration(v.GetInt64("JWT_USER_REFRESH_TOKEN_EXPIRE_SECONDS")) * time.Second
	cfg.JWTTechAccessTokenExpiry = time.Duration(v.GetInt64("JWT_TECH_ACCESS_TOKEN_EXPIRE_SECONDS")) * time.Second
	cfg.JWTTechRefreshTokenExpiry = time.Duration(v.GetInt64("JWT_TECH_REFRESH_TOKEN_EXPIRE_SECONDS")) * time.Second
	cfg.TokenRevocationCacheTTL = time.Duration(v.GetInt("TOKEN_REVOCATION_CACHE_SECONDS")) * time.Second

	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	if cfg.DBSource == "" && cfg.DBDriver == DriverPostgres {
		cfg.DBSource = cfg.PostgresDSN()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_DRIVER_NAME", "pgx")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "auth_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_PATH", "auth_api.db")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 50)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SOURCE", "")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("JWT_SECRET_KEY", "")
	v.SetDefault("JWT_ISSUER", "auth_api")
	v.SetDefault("JWT_USER_ACCESS_TOKEN_EXPIRE_SECONDS", 15*60)
	v.SetDefault("JWT_USER_REFRESH_TOKEN_EXPIRE_SECONDS", 30*24*60*60)
	v.SetDefault("JWT_TECH_ACCESS_TOKEN_EXPIRE_SECONDS", 24*60*60)
	v.SetDefault("JWT_TECH_REFRESH_TOKEN_EXPIRE_SECONDS", 365*24*60*60)
	v.SetDefault("TOKEN_REVOCATION_CACHE_SECONDS", 30)

	v.SetDefault("TOKEN_CLEANUP_SCHEDULE", "@hourly")

	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URI", "postmessage")

	v.SetDefault("MIGRATIONS_DIR", "internal/migrations/sql")

	v.SetDefault("INIT_ADMIN_USERNAME", "admin")
	v.SetDefault("INIT_ADMIN_EMAIL", "admin@mail.com")
	v.SetDefault("INIT_ADMIN_PASSWORD", "")
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected %q or %q)", c.DBDriver, DriverPostgres, DriverSQLite)
	}
	if strings.TrimSpace(c.JWTSecretKey) == "" {
		if c.GinMode == "release" {
			return errors.New("JWT_SECRET_KEY is not set; it is required in release mode")
		}
		c.JWTSecretKey = insecureDevSecret
	}
	if c.JWTUserAccessTokenExpiry <= 0 || c.JWTTechAccessTokenExpiry <= 0 {
		return errors.New("access token lifetimes must be positive")
	}
	if c.JWTUserRefreshTokenExpiry <= 0 || c.JWTTechRefreshTokenExpiry <= 0 {
		return errors.New("refresh token lifetimes must be positive")
	}
	return nil
}

// PostgresDSN builds the key/value DSN GORM's postgres driver expects.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode, c.DBTimezone)
}

// PostgresURL builds a postgres:// URL, the form pgx.Connect and lib/pq both accept.
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     c.DBAddress(),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": []string{c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// DBAddress is the host:port the readiness gate polls.
func (c *Config) DBAddress() string {
	return net.JoinHostPort(c.DBHost, c.DBPort)
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSAllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
