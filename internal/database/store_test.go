package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/npezzotti/go-carehome/internal/testutil"
	"github.com/npezzotti/go-carehome/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	logger := testutil.TestLogger(t)
	dir := t.TempDir()

	stores := map[string]Store{}

	mem, err := Open(logger, DriverMemory, "")
	require.NoError(t, err)
	stores[DriverMemory] = mem

	pb, err := Open(logger, DriverPebble, filepath.Join(dir, "pebble"))
	require.NoError(t, err)
	stores[DriverPebble] = pb

	lite, err := Open(logger, DriverSQLite, filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	stores[DriverSQLite] = lite

	if dsn := os.Getenv("CAREHOME_TEST_POSTGRES_DSN"); dsn != "" {
		pg, err := Open(logger, DriverPostgres, dsn)
		require.NoError(t, err)
		stores[DriverPostgres] = pg
	}

	t.Cleanup(func() {
		for _, s := range stores {
			s.Close()
		}
	})
	return stores
}

func TestStores(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "feed")
			assert.ErrorIs(t, err, types.ErrNotFound)

			require.NoError(t, s.Set(ctx, "feed", []byte(`{"v":1}`)))
			require.NoError(t, s.Set(ctx, "feed", []byte(`{"v":2}`)))
			require.NoError(t, s.Set(ctx, "messages", []byte(`{}`)))

			got, err := s.Get(ctx, "feed")
			require.NoError(t, err)
			assert.JSONEq(t, `{"v":2}`, string(got), "expected last write to win")

			require.NoError(t, s.Delete(ctx, "feed", "messages", "never-written"))
			_, err = s.Get(ctx, "feed")
			assert.ErrorIs(t, err, types.ErrNotFound)
			_, err = s.Get(ctx, "messages")
			assert.ErrorIs(t, err, types.ErrNotFound)
		})
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(testutil.TestLogger(t), "floppy", "")
	assert.Error(t, err)

	_, err = NewSQLStore("mysql", "")
	assert.Error(t, err)
}

func TestPebbleReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "pebble")

	s, err := NewPebbleStore(testutil.TestLogger(t), dir)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "directory", []byte("saved")))
	require.NoError(t, s.Close())

	s, err = NewPebbleStore(testutil.TestLogger(t), dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "directory")
	require.NoError(t, err)
	assert.Equal(t, []byte("saved"), got)
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'x'

	got, _ := m.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), got)
	assert.Equal(t, []string{"k"}, m.Keys())
}
