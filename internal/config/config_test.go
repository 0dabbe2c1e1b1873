package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	var (
		driver = "sqlite"
		dsn    = "carehome.db"
		level  = "info"
		addr   = "localhost:9090"
		cron   = "0 18 * * *"
	)

	tcases := []struct {
		name   string
		driver string
		dsn    string
		level  string
		cron   string
		err    bool
	}{
		{
			name:   "valid config",
			driver: driver,
			dsn:    dsn,
			level:  level,
			cron:   cron,
			err:    false,
		},
		{
			name:   "memory needs no dsn",
			driver: "memory",
			dsn:    "",
			level:  level,
			cron:   "",
			err:    false,
		},
		{
			name:   "empty driver",
			driver: "",
			dsn:    dsn,
			level:  level,
			cron:   cron,
			err:    true,
		},
		{
			name:   "unknown driver",
			driver: "mysql",
			dsn:    dsn,
			level:  level,
			cron:   cron,
			err:    true,
		},
		{
			name:   "empty DSN",
			driver: driver,
			dsn:    "",
			level:  level,
			cron:   cron,
			err:    true,
		},
		{
			name:   "bad log level",
			driver: driver,
			dsn:    dsn,
			level:  "loud",
			cron:   cron,
			err:    true,
		},
		{
			name:   "bad cron",
			driver: driver,
			dsn:    dsn,
			level:  level,
			cron:   "every evening",
			err:    true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			config, err := NewConfig(tc.driver, tc.dsn, tc.level, addr, tc.cron)
			if tc.err {
				assert.Error(t, err, "expected error for config: %s", tc.name)
				return
			}
			assert.NoError(t, err, "expected no error for config: %s", tc.name)

			assert.Equal(t, tc.driver, config.Storage.Driver, "expected storage driver to match")
			assert.Equal(t, tc.dsn, config.Storage.DSN, "expected storage dsn to match")
			assert.Equal(t, addr, config.MetricsAddr, "expected metrics address to match")
			assert.Equal(t, tc.cron, config.DigestCron, "expected digest cron to match")
		})
	}
}

func TestLoad(t *testing.T) {
	t.Run("defaults when file is missing", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), *cfg)
	})

	t.Run("file then env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "carehome.yaml")
		require.NoError(t, os.WriteFile(path, []byte(
			"storage:\n  driver: sqlite\n  dsn: /var/lib/carehome.db\nlog_level: debug\nmetrics_addr: :9090\n"), 0o600))
		t.Setenv("CAREHOME_LOG_LEVEL", "warn")

		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "sqlite", cfg.Storage.Driver)
		assert.Equal(t, "/var/lib/carehome.db", cfg.Storage.DSN)
		assert.Equal(t, "warn", cfg.LogLevel)
		assert.Equal(t, ":9090", cfg.MetricsAddr)
		assert.Equal(t, Default().DigestCron, cfg.DigestCron)

		logger, err := cfg.NewLogger()
		require.NoError(t, err)
		assert.NotNil(t, logger)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("storage: [oops"), 0o600))
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("env makes config invalid", func(t *testing.T) {
		t.Setenv("CAREHOME_STORAGE_DRIVER", "tape")
		_, err := Load("")
		assert.Error(t, err)
	})
}
