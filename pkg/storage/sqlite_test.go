package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDatabase(t *testing.T, db Database) {
	ctx := context.Background()

	_, err := db.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Set(ctx, "b", []byte(`{"x":1}`)))
	require.NoError(t, db.Set(ctx, "a", []byte(`[1,2]`)))

	got, err := db.Get(ctx, "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(got))

	require.NoError(t, db.Set(ctx, "b", []byte(`{"x":2}`)))
	got, err = db.Get(ctx, "b")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":2}`, string(got))

	keys, err := db.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, db.Delete(ctx, "a"))
	require.NoError(t, db.Delete(ctx, "a"))
	_, err = db.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	testDatabase(t, m)

	t.Run("values are copied", func(t *testing.T) {
		ctx := context.Background()
		v := []byte(`[1]`)
		require.NoError(t, m.Set(ctx, "k", v))
		v[1] = '9'
		got, err := m.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, `[1]`, string(got))
	})
}

func TestSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kv.db")
	ctx := context.Background()

	s, err := NewSQLite(ctx, path)
	require.NoError(t, err)
	testDatabase(t, s)
	require.NoError(t, s.Set(ctx, "persist", []byte(`true`)))
	require.NoError(t, s.Close())

	t.Run("reopen", func(t *testing.T) {
		s, err := NewSQLite(ctx, path)
		require.NoError(t, err)
		defer s.Close()
		got, err := s.Get(ctx, "persist")
		require.NoError(t, err)
		assert.Equal(t, `true`, string(got))
	})

	t.Run("Validate", func(t *testing.T) {
		assert.Error(t, (&SQLite{}).Validate())
		assert.NoError(t, (&SQLite{path: path}).Validate())
	})
}
