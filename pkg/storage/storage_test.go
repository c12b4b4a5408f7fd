package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuseats/storefront/pkg/storage"
)

type line struct {
	ItemID   string `json:"itemId"`
	Quantity int    `json:"quantity"`
}

func newRedisStore(t *testing.T) (*storage.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := storage.NewRedisStore("redis://"+mr.Addr(), "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

func stores(t *testing.T) map[string]storage.Store {
	redisStore, _ := newRedisStore(t)
	return map[string]storage.Store{
		"inmemory": storage.NewInMemoryStore(),
		"redis":    redisStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			want := []line{{ItemID: "I1", Quantity: 2}}

			require.NoError(t, store.Set(ctx, "cart", want, time.Hour))

			exists, err := store.Exists(ctx, "cart")
			require.NoError(t, err)
			assert.True(t, exists)

			var got []line
			require.NoError(t, storage.Load(ctx, store, "cart", &got))
			assert.Equal(t, want, got)

			require.NoError(t, store.Delete(ctx, "cart"))
			exists, err = store.Exists(ctx, "cart")
			require.NoError(t, err)
			assert.False(t, exists)
		})
	}
}

func TestStoreMissingKey(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "nope")
			assert.True(t, errors.Is(err, storage.ErrNotFound))

			var dest []line
			err = storage.Load(context.Background(), store, "nope", &dest)
			assert.True(t, errors.Is(err, storage.ErrNotFound))
		})
	}
}

func TestInMemoryStoreExpiration(t *testing.T) {
	store := storage.NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "expiring", "v", 20*time.Millisecond))
	time.Sleep(40 * time.Millisecond)

	exists, err := store.Exists(ctx, "expiring")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = store.Get(ctx, "expiring")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRedisStoreNamespacesAndTTL(t *testing.T) {
	store, mr := newRedisStore(t)
	ctx := context.Background()

	store.SetTTL(time.Minute)
	require.NoError(t, store.Set(ctx, "session", map[string]string{"token": "t"}, 0))

	assert.True(t, mr.Exists("test:session"))
	assert.Equal(t, time.Minute, mr.TTL("test:session"))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "session")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestNewRedisStoreRejectsBadURL(t *testing.T) {
	_, err := storage.NewRedisStore("not a url", "")
	assert.Error(t, err)
}

func TestNamespacedView(t *testing.T) {
	base := storage.NewInMemoryStore()
	ctx := context.Background()

	a := storage.Namespaced(base, "guest-a")
	b := storage.Namespaced(base, "guest-b")

	require.NoError(t, a.Set(ctx, "cart", []line{{ItemID: "I1", Quantity: 1}}, 0))

	exists, err := b.Exists(ctx, "cart")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = base.Exists(ctx, "guest-a:cart")
	require.NoError(t, err)
	assert.True(t, exists)

	assert.Same(t, storage.Store(base), storage.Namespaced(base, ""))
}
