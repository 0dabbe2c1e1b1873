package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/adhocore/gronx"
	"github.com/npezzotti/go-carehome/internal/database"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CAREHOME_"

type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type Config struct {
	Storage     StorageConfig `yaml:"storage"`
	LogLevel    string        `yaml:"log_level"`
	MetricsAddr string        `yaml:"metrics_addr"`
	DigestCron  string        `yaml:"digest_cron"`
}

func Default() Config {
	return Config{
		Storage: StorageConfig{
			Driver: database.DriverPebble,
			DSN:    "carehome-data",
		},
		LogLevel:   "info",
		DigestCron: "0 18 * * *",
	}
}

var validDrivers = map[string]bool{
	database.DriverMemory:   true,
	database.DriverPebble:   true,
	database.DriverSQLite:   true,
	database.DriverPostgres: true,
}

func NewConfig(driver, dsn, logLevel, metricsAddr, digestCron string) (*Config, error) {
	if driver == "" {
		return nil, fmt.Errorf("storage driver cannot be empty")
	}
	if !validDrivers[driver] {
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
	if dsn == "" && driver != database.DriverMemory {
		return nil, fmt.Errorf("storage dsn cannot be empty for driver %q", driver)
	}
	if _, err := zapcore.ParseLevel(logLevel); err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	if digestCron != "" && !gronx.IsValid(digestCron) {
		return nil, fmt.Errorf("invalid digest cron expression: %s", digestCron)
	}

	return &Config{
		Storage:     StorageConfig{Driver: driver, DSN: dsn},
		LogLevel:    logLevel,
		MetricsAddr: metricsAddr,
		DigestCron:  digestCron,
	}, nil
}

// Load reads path (when it exists) over the defaults, applies CAREHOME_*
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	applyEnv(&cfg)
	return NewConfig(cfg.Storage.Driver, cfg.Storage.DSN, cfg.LogLevel, cfg.MetricsAddr, cfg.DigestCron)
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"STORAGE_DRIVER", &cfg.Storage.Driver},
		{"STORAGE_DSN", &cfg.Storage.DSN},
		{"LOG_LEVEL", &cfg.LogLevel},
		{"METRICS_ADDR", &cfg.MetricsAddr},
		{"DIGEST_CRON", &cfg.DigestCron},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(envPrefix + o.name); ok {
			*o.dst = v
		}
	}
}

// NewLogger builds the process logger at the configured level.
func (c *Config) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Encoding = "console"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zc.Build()
}
