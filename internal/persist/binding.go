package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/npezzotti/go-carehome/internal/clock"
	"github.com/npezzotti/go-carehome/internal/database"
	"github.com/npezzotti/go-carehome/internal/types"
)

// Stateful is a store whose whole state can be captured and replaced.
type Stateful[T any] interface {
	State() T
	Restore(T)
	Subscribe(fn func()) func()
}

// Binding ties one store to one storage key.
type Binding interface {
	Key() string
	LegacyKeys() []string
	Subscribe(fn func()) func()
	Encode() ([]byte, error)
	Load(ctx context.Context, s database.Store) (loaded bool, err error)
	Seed()
}

type binding[T any] struct {
	key        string
	version    int
	legacy     []string
	migrations Migrations
	store      Stateful[T]
	seed       func() T
	now        clock.Clock
}

type BindOptions struct {
	// LegacyKeys are superseded key names deleted on reset.
	LegacyKeys []string
	Migrations Migrations
	Clock      clock.Clock
}

// Bind registers store under key at schema version. seed produces the
// default dataset used when nothing is stored and after a reset.
func Bind[T any](key string, version int, store Stateful[T], seed func() T, opts BindOptions) Binding {
	now := opts.Clock
	if now == nil {
		now = clock.System()
	}
	return &binding[T]{
		key:        key,
		version:    version,
		legacy:     opts.LegacyKeys,
		migrations: opts.Migrations,
		store:      store,
		seed:       seed,
		now:        now,
	}
}

func (b *binding[T]) Key() string {
	return b.key
}

func (b *binding[T]) LegacyKeys() []string {
	return b.legacy
}

func (b *binding[T]) Subscribe(fn func()) func() {
	return b.store.Subscribe(fn)
}

func (b *binding[T]) Encode() ([]byte, error) {
	data, err := json.Marshal(b.store.State())
	if err != nil {
		return nil, err
	}
	return json.Marshal(Document{
		SchemaVersion: b.version,
		Key:           b.key,
		SavedAt:       b.now(),
		Data:          data,
	})
}

// Load restores the store from s, upgrading old documents. A missing key
// leaves the store untouched and reports loaded=false.
func (b *binding[T]) Load(ctx context.Context, s database.Store) (bool, error) {
	raw, err := s.Get(ctx, b.key)
	if errors.Is(err, types.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, &PersistenceError{Op: "load", Key: b.key, Err: err}
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, &PersistenceError{Op: "decode", Key: b.key, Err: err}
	}
	doc, err = b.migrations.Upgrade(doc, b.version)
	if err != nil {
		return false, &PersistenceError{Op: "migrate", Key: b.key, Err: err}
	}

	var st T
	if err := json.Unmarshal(doc.Data, &st); err != nil {
		return false, &PersistenceError{Op: "decode", Key: b.key, Err: fmt.Errorf("data: %w", err)}
	}
	b.store.Restore(st)
	return true, nil
}

func (b *binding[T]) Seed() {
	b.store.Restore(b.seed())
}
