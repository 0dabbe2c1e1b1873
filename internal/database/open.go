package database

import (
	"fmt"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	DriverMemory = "memory"
	DriverPebble = "pebble"
)

// Open returns the store for driver. dsn is a directory for pebble, a file
// path for sqlite and a connection string for postgres; memory ignores it.
func Open(logger *zap.Logger, driver, dsn string) (Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverPebble:
		return NewPebbleStore(logger, dsn)
	case DriverSQLite, DriverPostgres:
		s, err := NewSQLStore(driver, dsn)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", driver, err)
		}
		logger.Info("sql_store_opened", zap.String("driver", driver))
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}
