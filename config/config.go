/*
config.go - Runtime configuration

PURPOSE:
  Reads service settings from the environment, an optional .env file and
  command line flags, and builds the logger from them.

PRECEDENCE (highest first):
  1. Command line flags bound with viper.BindPFlag
  2. Environment variables
  3. .env in the working directory
  4. Defaults below

KEYS:
  HTTP_ADDR              :8080
  DATABASE_PATH          leave.db
  LOG_LEVEL              info (logrus level name)
  LOG_FORMAT             text | json
  CORS_ALLOWED_ORIGINS   comma separated
  SCHEDULER_ENABLED      false
  SCHEDULER_INTERVAL     24h
  HOLIDAY_DEDUPLICATE    true
  SHUTDOWN_TIMEOUT       30s

SEE ALSO:
  - cmd/server/main.go: flag bindings
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Keys, shared with the flag bindings.
const (
	KeyHTTPAddr           = "HTTP_ADDR"
	KeyDatabasePath       = "DATABASE_PATH"
	KeyLogLevel           = "LOG_LEVEL"
	KeyLogFormat          = "LOG_FORMAT"
	KeyCORSOrigins        = "CORS_ALLOWED_ORIGINS"
	KeySchedulerEnabled   = "SCHEDULER_ENABLED"
	KeySchedulerInterval  = "SCHEDULER_INTERVAL"
	KeyHolidayDeduplicate = "HOLIDAY_DEDUPLICATE"
	KeyShutdownTimeout    = "SHUTDOWN_TIMEOUT"
)

// Config holds application configuration.
type Config struct {
	HTTPAddr           string
	DatabasePath       string
	LogLevel           string
	LogFormat          string
	CORSAllowedOrigins []string
	SchedulerEnabled   bool
	SchedulerInterval  time.Duration
	HolidayDeduplicate bool
	ShutdownTimeout    time.Duration
}

// New returns a viper instance with the defaults set and the environment
// bound. It loads .env first when present.
func New() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(KeyHTTPAddr, ":8080")
	v.SetDefault(KeyDatabasePath, "leave.db")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyCORSOrigins, "http://localhost:5173,http://localhost:8080")
	v.SetDefault(KeySchedulerEnabled, false)
	v.SetDefault(KeySchedulerInterval, "24h")
	v.SetDefault(KeyHolidayDeduplicate, true)
	v.SetDefault(KeyShutdownTimeout, "30s")
	v.AutomaticEnv()
	return v
}

// Load reads a Config out of v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		HTTPAddr:           v.GetString(KeyHTTPAddr),
		DatabasePath:       v.GetString(KeyDatabasePath),
		LogLevel:           v.GetString(KeyLogLevel),
		LogFormat:          strings.ToLower(v.GetString(KeyLogFormat)),
		CORSAllowedOrigins: splitList(v.GetString(KeyCORSOrigins)),
		SchedulerEnabled:   v.GetBool(KeySchedulerEnabled),
		HolidayDeduplicate: v.GetBool(KeyHolidayDeduplicate),
	}

	var err error
	if cfg.SchedulerInterval, err = parseDuration(v, KeySchedulerInterval); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = parseDuration(v, KeyShutdownTimeout); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c *Config) Validate() error {
	switch {
	case c.DatabasePath == "":
		return fmt.Errorf("%s must not be empty", KeyDatabasePath)
	case c.HTTPAddr == "":
		return fmt.Errorf("%s must not be empty", KeyHTTPAddr)
	case c.SchedulerInterval <= 0:
		return fmt.Errorf("%s must be positive, got %s", KeySchedulerInterval, c.SchedulerInterval)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%s must be positive, got %s", KeyShutdownTimeout, c.ShutdownTimeout)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%s must be text or json, got %q", KeyLogFormat, c.LogFormat)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%s: %w", KeyLogLevel, err)
	}
	return nil
}

// NewLogger builds the process logger.
func NewLogger(c *Config) *logrus.Logger {
	logger := logrus.New()
	if lvl, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
	if c.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, raw, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
