// File: internal/platform/logger/zap.go
package logger

import (
	"strings"

	"auth_api/internal/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New initializes a new Zap logger based on the application configuration.
// GIN_MODE picks the production or development preset; LOG_LEVEL and LOG_FORMAT override it.
func New(cfg *config.Config) (*zap.Logger, error) {
	var zapConfig zap.Config

	if cfg.GinMode == "release" {
		zapConfig = zap.NewProductionConfig()
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else { // "debug" or "test"
		zapConfig = zap.NewDevelopmentConfig()
		zapConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapConfig.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig.Level = zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel))

	switch strings.ToLower(cfg.LogFormat) {
	case "json":
		zapConfig.Encoding = "json"
		zapConfig.EncoderConfig.EncodeLevel = zapcore.LowercaseLevelEncoder
	case "console":
		zapConfig.Encoding = "console"
	}

	logger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}
	return logger.Named("auth_api"), nil
}

// ParseLevel maps LOG_LEVEL to a zap level, defaulting to info.
func ParseLevel(level string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zapcore.DebugLevel
	case "info", "":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "dpanic":
		return zapcore.DPanicLevel
	case "panic":
		return zapcore.PanicLevel
	case "fatal":
		return zapcore.FatalLevel
	}
	return zapcore.InfoLevel
}
