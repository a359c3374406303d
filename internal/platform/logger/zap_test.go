package logger

import (
	"testing"

	"auth_api/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestNew_RespectsLevel(t *testing.T) {
	l, err := New(&config.Config{GinMode: "release", LogLevel: "error", LogFormat: "json"})
	require.NoError(t, err)

	assert.False(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, l.Core().Enabled(zapcore.ErrorLevel))
}
