package config_test

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "leave.db", cfg.DatabasePath)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.SchedulerEnabled)
	assert.Equal(t, 24*time.Hour, cfg.SchedulerInterval)
	assert.True(t, cfg.HolidayDeduplicate)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("DATABASE_PATH", "/tmp/leave-test.db")
	t.Setenv("SCHEDULER_ENABLED", "true")
	t.Setenv("SCHEDULER_INTERVAL", "15m")
	t.Setenv("HOLIDAY_DEDUPLICATE", "false")
	t.Setenv("LOG_FORMAT", "JSON")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://hr.example.com , ")

	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	assert.Equal(t, "/tmp/leave-test.db", cfg.DatabasePath)
	assert.True(t, cfg.SchedulerEnabled)
	assert.Equal(t, 15*time.Minute, cfg.SchedulerInterval)
	assert.False(t, cfg.HolidayDeduplicate)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, []string{"https://hr.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"empty database path", "DATABASE_PATH", ""},
		{"bad interval", "SCHEDULER_INTERVAL", "soon"},
		{"non-positive interval", "SCHEDULER_INTERVAL", "0s"},
		{"negative shutdown timeout", "SHUTDOWN_TIMEOUT", "-1s"},
		{"unknown log level", "LOG_LEVEL", "chatty"},
		{"unknown log format", "LOG_FORMAT", "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.New()
			v.Set(tt.key, tt.val)
			_, err := config.Load(v)
			assert.Error(t, err)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger := config.NewLogger(&config.Config{LogLevel: "debug", LogFormat: "json"})
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, logger.Formatter)

	logger = config.NewLogger(&config.Config{LogLevel: "warn", LogFormat: "text"})
	assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, logger.Formatter)
}
