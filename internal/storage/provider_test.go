package storage

import (
	"context"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/itemdesk/internal/apperr"
)

// backends returns one fresh instance of every Provider implementation.
func backends(t *testing.T) map[string]Provider {
	t.Helper()

	fs, err := NewFS(t.TempDir())
	require.NoError(t, err)

	db, err := OpenSQLite(filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rc := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "itemdesk:")
	t.Cleanup(func() { _ = rc.Close() })

	return map[string]Provider{
		"fs":     fs,
		"sqlite": db,
		"redis":  rc,
		"memory": NewMemory(),
	}
}

func TestProviderContract(t *testing.T) {
	for name, p := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := p.Get(ctx, "items")
			require.ErrorIs(t, err, apperr.ErrNotFound)

			require.NoError(t, p.Set(ctx, "items", []byte("v1")))
			require.NoError(t, p.Set(ctx, "items", []byte("v2")))
			got, err := p.Get(ctx, "items")
			require.NoError(t, err)
			assert.Equal(t, "v2", string(got))

			require.NoError(t, p.Set(ctx, "archive", []byte("[]")))
			keys, err := p.Keys(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"archive", "items"}, keys)

			require.NoError(t, p.Delete(ctx, "items"))
			require.NoError(t, p.Delete(ctx, "items"))
			_, err = p.Get(ctx, "items")
			assert.ErrorIs(t, err, apperr.ErrNotFound)

			assert.Error(t, p.Set(ctx, "../escape", []byte("x")))
		})
	}
}

func TestMemoryCopiesValues(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	buf := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", buf))
	buf[0] = 'z'

	got, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))

	got[1] = 'z'
	again, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestRedisPrefixIsolation(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	a := NewRedis(client, "a:")
	b := NewRedis(client, "b:")
	require.NoError(t, a.Set(ctx, "items", []byte("from-a")))

	_, err = b.Get(ctx, "items")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	raw, err := mr.Get("a:items")
	require.NoError(t, err)
	assert.Equal(t, "from-a", raw)
}
