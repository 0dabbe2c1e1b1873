package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/npezzotti/go-carehome/internal/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type dialect struct {
	createTable string
	selectValue string
	upsertValue string
	deleteValue string
}

var dialects = map[string]dialect{
	DriverSQLite: {
		createTable: "CREATE TABLE IF NOT EXISTS carehome_state (" +
			"key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at INTEGER NOT NULL)",
		selectValue: "SELECT value FROM carehome_state WHERE key = ? LIMIT 1",
		upsertValue: "INSERT INTO carehome_state (key, value, updated_at) VALUES (?, ?, ?) " +
			"ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		deleteValue: "DELETE FROM carehome_state WHERE key = ?",
	},
	DriverPostgres: {
		createTable: "CREATE TABLE IF NOT EXISTS carehome_state (" +
			"key TEXT PRIMARY KEY, value TEXT NOT NULL, updated_at BIGINT NOT NULL)",
		selectValue: "SELECT value FROM carehome_state WHERE key = $1 LIMIT 1",
		upsertValue: "INSERT INTO carehome_state (key, value, updated_at) VALUES ($1, $2, $3) " +
			"ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at",
		deleteValue: "DELETE FROM carehome_state WHERE key = $1",
	},
}

// SQLStore keeps documents in a single carehome_state table. The caller
// must import the driver: modernc.org/sqlite for "sqlite", lib/pq for
// "postgres".
type SQLStore struct {
	conn    *sql.DB
	dialect dialect
}

func NewSQLStore(driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if _, err := db.Exec(d.createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create state table: %w", err)
	}

	return &SQLStore{conn: db, dialect: d}, nil
}

func (db *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, db.dialect.selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get %q: %w", key, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

func (db *SQLStore) Set(ctx context.Context, key string, value []byte) error {
	_, err := db.conn.ExecContext(ctx, db.dialect.upsertValue,
		key,
		string(value),
		time.Now().UTC().UnixMilli(),
	)
	return err
}

func (db *SQLStore) Delete(ctx context.Context, keys ...string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, k := range keys {
		if _, err := tx.ExecContext(ctx, db.dialect.deleteValue, k); err != nil {
			return fmt.Errorf("delete %q: %w", k, err)
		}
	}
	return tx.Commit()
}

func (db *SQLStore) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}
