package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/npezzotti/go-carehome/internal/types"
	"go.uber.org/zap"
)

// PebbleStore keeps documents in an embedded pebble database.
type PebbleStore struct {
	log *zap.Logger
	db  *pebble.DB
}

func NewPebbleStore(logger *zap.Logger, path string) (*PebbleStore, error) {
	logger.Info("opening_pebble_db", zap.String("path", path))
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return &PebbleStore{log: logger, db: db}, nil
}

func (p *PebbleStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, fmt.Errorf("get %q: %w", key, types.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte{}, v...), nil
}

func (p *PebbleStore) Set(ctx context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		p.log.Error("pebble_set_failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

func (p *PebbleStore) Delete(ctx context.Context, keys ...string) error {
	b := p.db.NewBatch()
	defer b.Close()
	for _, k := range keys {
		if err := b.Delete([]byte(k), nil); err != nil {
			return err
		}
	}
	return b.Commit(pebble.Sync)
}

func (p *PebbleStore) Close() error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.log.Info("pebble_closed")
	return err
}
