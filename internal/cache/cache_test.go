package cache_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/tradehub/internal/cache"
	"github.com/Additional-Code/tradehub/internal/config"
)

type record struct {
	ID    int64  `json:"id"`
	Total string `json:"total"`
}

func redisStore(t *testing.T) (cache.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)

	lc := fxtest.NewLifecycle(t)
	store, err := cache.NewStore(lc, config.Config{Cache: config.Cache{
		Driver:     "redis",
		DefaultTTL: time.Minute,
		Redis:      config.Redis{Addr: mr.Addr()},
	}}, zaptest.NewLogger(t))
	require.NoError(t, err)
	lc.RequireStart()
	t.Cleanup(lc.RequireStop)

	return store, mr
}

func TestRedisStoreJSONRoundTrip(t *testing.T) {
	store, mr := redisStore(t)
	ctx := t.Context()
	key := cache.Key("orders", 7)
	assert.Equal(t, "orders:7", key)

	_, err := cache.GetJSON[record](ctx, store, key)
	require.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, cache.SetJSON(ctx, store, key, record{ID: 7, Total: "30.00"}, 0))
	assert.Equal(t, time.Minute, mr.TTL(key))

	got, err := cache.GetJSON[record](ctx, store, key)
	require.NoError(t, err)
	assert.Equal(t, &record{ID: 7, Total: "30.00"}, got)

	mr.FastForward(2 * time.Minute)
	_, err = cache.GetJSON[record](ctx, store, key)
	require.ErrorIs(t, err, cache.ErrCacheMiss)
}

func TestRedisStoreDelete(t *testing.T) {
	store, mr := redisStore(t)
	ctx := t.Context()

	require.NoError(t, store.Set(ctx, "invoices:1", []byte(`{}`), 5*time.Second))
	require.NoError(t, store.Delete(ctx, "invoices:1"))
	assert.False(t, mr.Exists("invoices:1"))
	require.Error(t, store.Set(ctx, "", []byte("x"), 0))
}

func TestNoopAndNilStores(t *testing.T) {
	ctx := t.Context()
	store, err := cache.NewStore(fxtest.NewLifecycle(t), config.Config{Cache: config.Cache{Driver: "noop"}}, nil)
	require.NoError(t, err)

	require.NoError(t, cache.SetJSON(ctx, store, "orders:1", record{ID: 1}, 0))
	_, err = cache.GetJSON[record](ctx, store, "orders:1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	require.NoError(t, cache.SetJSON(ctx, nil, "orders:1", record{ID: 1}, 0))
	_, err = cache.GetJSON[record](ctx, nil, "orders:1")
	assert.ErrorIs(t, err, cache.ErrCacheMiss)

	_, err = cache.NewStore(fxtest.NewLifecycle(t), config.Config{Cache: config.Cache{Driver: "memcached"}}, nil)
	assert.EqualError(t, err, "unsupported cache driver: memcached")
}

func TestCorruptEntry(t *testing.T) {
	store, mr := redisStore(t)
	require.NoError(t, mr.Set("orders:9", "not json"))

	_, err := cache.GetJSON[record](t.Context(), store, "orders:9")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cache.ErrCacheMiss)
}
