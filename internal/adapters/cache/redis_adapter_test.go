package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zatekoja/providerdirectory/internal/domain/providers"
	redisclient "github.com/zatekoja/providerdirectory/internal/infrastructure/clients/redis"
)

func newTestAdapter(t *testing.T) (*RedisAdapter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redisclient.NewClientWithOptions(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisAdapter(client), mr
}

func TestRedisAdapter_GetSet(t *testing.T) {
	a, mr := newTestAdapter(t)
	ctx := context.Background()

	_, err := a.Get(ctx, "provider:1")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)

	require.NoError(t, a.Set(ctx, "provider:1", []byte(`{"id":"1"}`), 60))
	got, err := a.Get(ctx, "provider:1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(got))

	mr.FastForward(61 * time.Second)
	_, err = a.Get(ctx, "provider:1")
	assert.ErrorIs(t, err, providers.ErrCacheMiss)
}

func TestRedisAdapter_Multi(t *testing.T) {
	a, _ := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.SetMulti(ctx, map[string][]byte{
		"provider:1": []byte("one"),
		"provider:2": []byte("two"),
	}, 60))

	got, err := a.GetMulti(ctx, []string{"provider:1", "provider:3", "provider:2"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]byte{
		"provider:1": []byte("one"),
		"provider:2": []byte("two"),
	}, got)
}

func TestRedisAdapter_DeletePattern(t *testing.T) {
	a, mr := newTestAdapter(t)
	ctx := context.Background()

	require.NoError(t, a.Set(ctx, "providers:list:all", []byte("x"), 60))
	require.NoError(t, a.Set(ctx, "providers:list:bbox", []byte("y"), 60))
	require.NoError(t, a.Set(ctx, "provider:1", []byte("z"), 60))

	require.NoError(t, a.DeletePattern(ctx, "providers:list:*"))

	assert.False(t, mr.Exists("providers:list:all"))
	assert.False(t, mr.Exists("providers:list:bbox"))
	assert.True(t, mr.Exists("provider:1"))

	require.NoError(t, a.Delete(ctx, "provider:1"))
	assert.False(t, mr.Exists("provider:1"))
}
